/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ir

import (
	"fmt"
	"strings"
)

// DefaultCase marks the fallback successor of a switch.
const DefaultCase = -1

// Successor is a control-flow edge of a terminator. Args is the number of operands
// forwarded to the destination block's arguments.
type Successor struct {
	Block BlockID
	Case  int
	Args  int
}

// Aux carries the non-operand payload of an instruction.
type Aux struct {
	Type  *Type
	Index int
	Int   int64
	Arith ArithOp
	Name  string
	Subst SubstMap
	Succs []Successor
	Owned bool
}

type Instr struct {
	Aux
	ID      InstrID
	Op      Op
	Block   BlockID
	Results []ValueID
	ops     []_Operand
	prev    InstrID
	next    InstrID
}

func (self *Instr) NumOperands() int {
	return len(self.ops)
}

func (self *Instr) Operand(i int) ValueID {
	return self.ops[i].v
}

func (self *Instr) Operands() []ValueID {
	ret := make([]ValueID, len(self.ops))
	for i, p := range self.ops {
		ret[i] = p.v
	}
	return ret
}

// Result returns the single result of the instruction.
func (self *Instr) Result() ValueID {
	if len(self.Results) != 1 {
		panic(fmt.Sprintf("ir: instruction has %d results: %s", len(self.Results), self))
	}
	return self.Results[0]
}

func (self *Instr) IsTerminator() bool {
	return self.Op.IsTerminator()
}

// fixedOperands is the number of operands preceding the successor arguments.
func (self *Instr) fixedOperands() int {
	switch self.Op {
	case OpBr:
		return 0
	case OpCondBr, OpSwitchEnum, OpSwitchEnumAddr:
		return 1
	default:
		return len(self.ops)
	}
}

// SuccArgs returns the operands forwarded along the k-th successor edge.
func (self *Instr) SuccArgs(k int) []ValueID {
	p := self.fixedOperands()
	for _, s := range self.Succs[:k] {
		p += s.Args
	}
	ret := make([]ValueID, self.Succs[k].Args)
	for i := range ret {
		ret[i] = self.ops[p+i].v
	}
	return ret
}

// CaseSuccessor returns the successor taken for an enum case, falling back to the default.
func (self *Instr) CaseSuccessor(c int) (Successor, bool) {
	var def *Successor
	for i, s := range self.Succs {
		if s.Case == c {
			return s, true
		} else if s.Case == DefaultCase {
			def = &self.Succs[i]
		}
	}
	if def == nil {
		return Successor{}, false
	} else {
		return *def, true
	}
}

func (self *Instr) String() string {
	var buf []string
	var out []string

	/* dump results */
	for _, r := range self.Results {
		out = append(out, r.String())
	}

	/* dump fixed operands */
	for _, p := range self.ops[:self.fixedOperands()] {
		buf = append(buf, p.v.String())
	}

	/* instruction-specific payload */
	switch self.Op {
	case OpIntegerLiteral:
		buf = append(buf, fmt.Sprintf("%d", self.Int))
	case OpFunctionRef, OpClassMethod:
		buf = append(buf, "@"+self.Name)
	case OpStructExtract, OpTupleExtract, OpStructElementAddr, OpTupleElementAddr:
		buf = append(buf, fmt.Sprintf("#%d", self.Index))
	case OpEnum, OpUncheckedEnumData, OpInjectEnumAddr:
		buf = append(buf, fmt.Sprintf("case #%d", self.Index))
	case OpBuiltinArith, OpBuiltinChecked:
		buf = append([]string{self.Arith.String()}, buf...)
	case OpApply, OpPartialApply:
		if len(self.Subst) != 0 {
			buf = append(buf, self.Subst.String())
		}
		if self.Owned {
			buf = append(buf, "[callee_owned]")
		}
	}

	/* dump successors */
	for i, s := range self.Succs {
		args := make([]string, 0, s.Args)
		for _, v := range self.SuccArgs(i) {
			args = append(args, v.String())
		}
		switch {
		case self.Op == OpBr || self.Op == OpCondBr:
			buf = append(buf, fmt.Sprintf("%s(%s)", s.Block, strings.Join(args, ", ")))
		case s.Case == DefaultCase:
			buf = append(buf, fmt.Sprintf("default: %s", s.Block))
		default:
			buf = append(buf, fmt.Sprintf("case #%d: %s", s.Case, s.Block))
		}
	}

	/* instruction text */
	ins := self.Op.String()
	if len(buf) != 0 {
		ins += " " + strings.Join(buf, ", ")
	}

	/* type annotation */
	if self.Type != nil {
		ins += " : " + self.Type.String()
	}

	/* join them together */
	if len(out) == 0 {
		return ins
	} else {
		return strings.Join(out, ", ") + " = " + ins
	}
}
