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

package combine

import (
	"github.com/cloudwego/peephole/ir"
	"golang.org/x/exp/slices"
)

// cond_fail 0 never traps.
func (self *Combiner) visitCondFail(p *ir.Instr) _Edit {
	if isLiteral(self.fn, p.Operand(0), 0) {
		self.erase(p, "branch.cond_fail")
		return erased
	} else {
		return noChange
	}
}

// jumpTo creates an unconditional branch along the k-th successor edge of p.
func (self *Combiner) jumpTo(p *ir.Instr, k int) *ir.Instr {
	return self.at(p).Br(self.fn.Block(p.Succs[k].Block), p.SuccArgs(k)...)
}

// caseEdge returns the index of the successor edge p takes for case c.
func caseEdge(p *ir.Instr, c int) (int, bool) {
	if s, ok := p.CaseSuccessor(c); !ok {
		return -1, false
	} else {
		return slices.Index(p.Succs, s), true
	}
}

// cond_br on a literal => br
func (self *Combiner) visitCondBr(p *ir.Instr) _Edit {
	if v, ok := literal(self.fn, p.Operand(0)); !ok {
		return noChange
	} else if v != 0 {
		return replacedBy("branch.cond_br", self.jumpTo(p, 0))
	} else {
		return replacedBy("branch.cond_br", self.jumpTo(p, 1))
	}
}

// switch_enum on an enum literal => br
func (self *Combiner) visitSwitchEnum(p *ir.Instr) _Edit {
	q := defOp(self.fn, p.Operand(0), ir.OpEnum)
	if q == nil {
		return noChange
	}

	/* find the taken edge */
	if k, ok := caseEdge(p, q.Index); !ok {
		return noChange
	} else {
		return replacedBy("branch.switch_enum", self.jumpTo(p, k))
	}
}

// Promotes a switch over memory to a switch over the value just stored to it:
//
//   store %e to %a; switch_enum_addr %a   => switch_enum %e
//   inject_enum_addr %a, #c; switch_enum_addr %a => br <case #c>
//
// Only retains may sit between the write and the switch.
func (self *Combiner) visitSwitchEnumAddr(p *ir.Instr) _Edit {
	fn := self.fn
	addr := p.Operand(0)

	/* skip over retains */
	q := fn.Prev(p)
	for q != nil && q.Op == ir.OpRetain {
		q = fn.Prev(q)
	}

	/* check the last write */
	switch {
	case q == nil:
		return noChange
	case q.Op == ir.OpStore && q.Operand(1) == addr:
		ops := append([]ir.ValueID{q.Operand(0)}, p.Operands()[1:]...)
		aux := ir.Aux{Succs: slices.Clone(p.Succs)}
		return replacedBy("branch.switch_enum_addr", self.at(p).CreateInstr(ir.OpSwitchEnum, aux, nil, ops...))
	case q.Op == ir.OpInjectEnumAddr && q.Operand(0) == addr:
		if k, ok := caseEdge(p, q.Index); ok {
			return replacedBy("branch.inject_enum_addr", self.jumpTo(p, k))
		}
	}
	return noChange
}
