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

// Package verify checks structural well-formedness of IR functions.
package verify

import (
	"fmt"

	"github.com/cloudwego/peephole/ir"
	"github.com/oleiade/lane"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"
)

// Error occures when a function is not well-formed.
type Error struct {
	Func   string
	Instr  string
	Reason string
}

func (self *Error) Error() string {
	if self.Instr == "" {
		return fmt.Sprintf("VerifyError(@%s): %s", self.Func, self.Reason)
	} else {
		return fmt.Sprintf("VerifyError(@%s): %s: %s", self.Func, self.Instr, self.Reason)
	}
}

type _Verifier struct {
	fn  *ir.Function
	pos map[ir.InstrID]int
	dom flow.DominatorTree
	rch map[ir.BlockID]bool
}

// Function verifies fn and returns the first problem found.
func Function(fn *ir.Function) error {
	if fn.External {
		return nil
	}

	/* must have at least one block */
	if fn.Entry() == nil {
		return &Error{Func: fn.Name, Reason: "function has no blocks"}
	}

	/* use lists must mirror operand slots */
	if err := fn.CheckUseLists(); err != nil {
		return &Error{Func: fn.Name, Reason: err.Error()}
	}

	/* check each phase */
	v := &_Verifier{fn: fn, pos: make(map[ir.InstrID]int)}
	if err := v.blocks(); err != nil {
		return err
	}
	v.dominators()
	return v.instrs()
}

func (self *_Verifier) fail(p *ir.Instr, format string, args ...interface{}) error {
	e := &Error{Func: self.fn.Name, Reason: fmt.Sprintf(format, args...)}
	if p != nil {
		e.Instr = p.String()
	}
	return e
}

func (self *_Verifier) blocks() error {
	for _, bb := range self.fn.Blocks() {
		ins := self.fn.Instrs(bb)
		if len(ins) == 0 {
			return self.fail(nil, "%s is empty", bb.ID)
		}

		/* exactly one terminator, at the end */
		for i, p := range ins {
			self.pos[p.ID] = i
			if p.Block != bb.ID {
				return self.fail(p, "instruction claims to be in %s, found in %s", p.Block, bb.ID)
			}
			if p.IsTerminator() != (i == len(ins)-1) {
				return self.fail(p, "misplaced terminator in %s", bb.ID)
			}
		}

		/* successor arguments must match the destination */
		term := ins[len(ins)-1]
		for i, s := range term.Succs {
			dest := self.fn.Block(s.Block)
			if dest == nil {
				return self.fail(term, "branch to unknown block %s", s.Block)
			}
			args := term.SuccArgs(i)
			if len(args) != len(dest.Args) {
				return self.fail(term, "%s expects %d arguments, got %d", dest.ID, len(dest.Args), len(args))
			}
			for k, v := range args {
				if self.fn.TypeOf(v) != self.fn.TypeOf(dest.Args[k]) {
					return self.fail(term, "argument %d of %s has type %s, expected %s", k, dest.ID, self.fn.TypeOf(v), self.fn.TypeOf(dest.Args[k]))
				}
			}
		}
	}
	return nil
}

// dominators computes the dominator tree of the blocks reachable from the entry.
func (self *_Verifier) dominators() {
	g := simple.NewDirectedGraph()
	q := lane.NewQueue()
	entry := self.fn.Entry()
	self.rch = map[ir.BlockID]bool{entry.ID: true}

	/* breadth-first walk over reachable blocks */
	g.AddNode(simple.Node(entry.ID))
	for q.Enqueue(entry); !q.Empty(); {
		bb := q.Dequeue().(*ir.Block)
		for _, succ := range self.fn.Successors(bb) {
			if !self.rch[succ.ID] {
				self.rch[succ.ID] = true
				g.AddNode(simple.Node(succ.ID))
				q.Enqueue(succ)
			}
			if succ.ID != bb.ID && !g.HasEdgeFromTo(int64(bb.ID), int64(succ.ID)) {
				g.SetEdge(g.NewEdge(simple.Node(bb.ID), simple.Node(succ.ID)))
			}
		}
	}

	/* Lengauer-Tarjan over the reachable subgraph */
	self.dom = flow.Dominators(simple.Node(entry.ID), g)
}

func (self *_Verifier) dominates(a ir.BlockID, b ir.BlockID) bool {
	var n graph.Node
	for n = simple.Node(b); n != nil; n = self.dom.DominatorOf(n.ID()) {
		if n.ID() == int64(a) {
			return true
		}
	}
	return false
}

func (self *_Verifier) instrs() error {
	for _, bb := range self.fn.Blocks() {
		for _, p := range self.fn.Instrs(bb) {
			if err := self.operands(bb, p); err != nil {
				return err
			}
			if err := self.types(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (self *_Verifier) operands(bb *ir.Block, p *ir.Instr) error {
	if !self.rch[bb.ID] {
		return nil
	}

	/* every operand must be defined before it is used */
	for i, v := range p.Operands() {
		switch self.fn.KindOf(v) {
		case ir.VUndef:
			break
		case ir.VArg:
			if ab := self.fn.ArgBlock(v); !self.rch[ab.ID] || !self.dominates(ab.ID, bb.ID) {
				return self.fail(p, "operand %d (%s) does not dominate its use", i, v)
			}
		case ir.VResult:
			def := self.fn.DefOf(v)
			if def.Block == bb.ID {
				if self.pos[def.ID] >= self.pos[p.ID] {
					return self.fail(p, "operand %d (%s) is used before its definition", i, v)
				}
			} else if !self.rch[def.Block] || !self.dominates(def.Block, bb.ID) {
				return self.fail(p, "operand %d (%s) does not dominate its use", i, v)
			}
		default:
			return self.fail(p, "operand %d (%s) is not a live value", i, v)
		}
	}
	return nil
}

func (self *_Verifier) types(p *ir.Instr) error {
	ty := self.fn.TypeOf
	switch p.Op {
	case ir.OpStructExtract, ir.OpTupleExtract:
		if t := ty(p.Operand(0)); t.NumFields() <= p.Index || t.FieldType(p.Index) != ty(p.Result()) {
			return self.fail(p, "extracted field type mismatch")
		}
	case ir.OpStruct:
		t := ty(p.Result())
		for i, v := range p.Operands() {
			if t.FieldType(i) != ty(v) {
				return self.fail(p, "field %d has type %s, expected %s", i, ty(v), t.FieldType(i))
			}
		}
	case ir.OpStore:
		if at := ty(p.Operand(1)); !at.IsAddress() || at.Elem != ty(p.Operand(0)) {
			return self.fail(p, "stored value type does not match the address")
		}
	case ir.OpLoad:
		if at := ty(p.Operand(0)); !at.IsAddress() || at.Elem != ty(p.Result()) {
			return self.fail(p, "loaded value type does not match the address")
		}
	case ir.OpIndexAddr, ir.OpIndexRawPointer:
		if ty(p.Operand(0)) != ty(p.Result()) {
			return self.fail(p, "indexing changes the base type")
		}
	case ir.OpUpcast:
		if !ty(p.Operand(0)).IsSubclassOf(ty(p.Result())) {
			return self.fail(p, "upcast to a non-superclass")
		}
	case ir.OpAddressToPointer, ir.OpUncheckedAddrCast:
		if !ty(p.Operand(0)).IsAddress() {
			return self.fail(p, "operand is not an address")
		}
	case ir.OpPointerToAddress:
		if ty(p.Operand(0)).Kind != ir.KRawPointer || !ty(p.Result()).IsAddress() {
			return self.fail(p, "invalid pointer to address conversion")
		}
	case ir.OpReturn:
		if self.fn.Type != nil && self.fn.Type.Kind == ir.KFunc && len(self.fn.Type.Results) != p.NumOperands() {
			return self.fail(p, "returns %d values, expected %d", p.NumOperands(), len(self.fn.Type.Results))
		}
	}
	return nil
}
