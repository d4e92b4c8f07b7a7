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

	"golang.org/x/exp/slices"
)

type Block struct {
	ID    BlockID
	Args  []ValueID
	first InstrID
	last  InstrID
}

// Function owns its blocks, instructions and values. Handles index the arenas below and
// are never reused, so an erased instruction leaves a nil slot behind.
type Function struct {
	Name     string
	Type     *Type
	Effects  Effects
	Generic  []string
	External bool
	order    []BlockID
	blocks   []*Block
	instrs   []*Instr
	values   []_Value
	live     int
}

func NewFunction(name string, typ *Type) *Function {
	return &Function{
		Name:   name,
		Type:   typ,
		blocks: []*Block{nil},
		instrs: []*Instr{nil},
		values: []_Value{{}},
	}
}

// NewDeclaration creates a body-less function with known effects.
func NewDeclaration(name string, typ *Type, effects Effects) *Function {
	fn := NewFunction(name, typ)
	fn.Effects = effects
	fn.External = true
	return fn
}

func (self *Function) String() string {
	return self.Dump()
}

/** Blocks **/

// AddBlock appends a new block with arguments of the given types.
func (self *Function) AddBlock(args ...*Type) *Block {
	bb := &Block{ID: BlockID(len(self.blocks))}
	self.blocks = append(self.blocks, bb)
	self.order = append(self.order, bb.ID)

	/* create block arguments */
	for i, t := range args {
		bb.Args = append(bb.Args, self.newValue(_Value{
			kind:  VArg,
			typ:   t,
			block: bb.ID,
			index: i,
		}))
	}
	return bb
}

func (self *Function) Block(id BlockID) *Block {
	if id <= 0 || int(id) >= len(self.blocks) {
		return nil
	} else {
		return self.blocks[id]
	}
}

// Blocks returns the blocks in layout order, entry first.
func (self *Function) Blocks() []*Block {
	ret := make([]*Block, len(self.order))
	for i, id := range self.order {
		ret[i] = self.blocks[id]
	}
	return ret
}

func (self *Function) Entry() *Block {
	if len(self.order) == 0 {
		return nil
	} else {
		return self.blocks[self.order[0]]
	}
}

func (self *Function) NumBlocks() int {
	return len(self.order)
}

// MaxBlock returns an upper bound of block handles.
func (self *Function) MaxBlock() int {
	return len(self.blocks)
}

// Terminator returns the last instruction of a block, or nil if it's empty.
func (self *Function) Terminator(bb *Block) *Instr {
	if bb.last == NoInstr {
		return nil
	} else if p := self.instrs[bb.last]; p.IsTerminator() {
		return p
	} else {
		return nil
	}
}

// Successors returns the destinations of the block's terminator, in edge order.
func (self *Function) Successors(bb *Block) []*Block {
	term := self.Terminator(bb)
	if term == nil {
		return nil
	}
	ret := make([]*Block, 0, len(term.Succs))
	for _, s := range term.Succs {
		ret = append(ret, self.blocks[s.Block])
	}
	return ret
}

/** Instructions **/

func (self *Function) Instr(id InstrID) *Instr {
	if id <= 0 || int(id) >= len(self.instrs) {
		return nil
	} else {
		return self.instrs[id]
	}
}

// MustInstr returns a live instruction, and panics on stale handles.
func (self *Function) MustInstr(id InstrID) *Instr {
	if p := self.Instr(id); p == nil {
		panic(fmt.Sprintf("ir: stale instruction handle %s in %s", id, self.Name))
	} else {
		return p
	}
}

func (self *Function) First(bb *Block) *Instr {
	return self.Instr(bb.first)
}

func (self *Function) Last(bb *Block) *Instr {
	return self.Instr(bb.last)
}

func (self *Function) Next(p *Instr) *Instr {
	return self.Instr(p.next)
}

func (self *Function) Prev(p *Instr) *Instr {
	return self.Instr(p.prev)
}

// Instrs returns a snapshot of the block's instructions in order.
func (self *Function) Instrs(bb *Block) []*Instr {
	var ret []*Instr
	for p := self.Instr(bb.first); p != nil; p = self.Instr(p.next) {
		ret = append(ret, p)
	}
	return ret
}

// NumInstrs returns the number of live instructions.
func (self *Function) NumInstrs() int {
	return self.live
}

// MaxInstr returns an upper bound of instruction handles.
func (self *Function) MaxInstr() int {
	return len(self.instrs)
}

/** Values **/

func (self *Function) newValue(v _Value) ValueID {
	self.values = append(self.values, v)
	return ValueID(len(self.values) - 1)
}

func (self *Function) value(v ValueID) *_Value {
	if v <= 0 || int(v) >= len(self.values) {
		panic(fmt.Sprintf("ir: invalid value handle %s in %s", v, self.Name))
	} else if p := &self.values[v]; p.kind == VDead {
		panic(fmt.Sprintf("ir: use of released value %s in %s", v, self.Name))
	} else {
		return p
	}
}

// Undef creates a fresh undefined value of type t.
func (self *Function) Undef(t *Type) ValueID {
	return self.newValue(_Value{kind: VUndef, typ: t})
}

func (self *Function) IsLive(v ValueID) bool {
	return v > 0 && int(v) < len(self.values) && self.values[v].kind != VDead
}

func (self *Function) KindOf(v ValueID) ValueKind {
	return self.value(v).kind
}

func (self *Function) TypeOf(v ValueID) *Type {
	return self.value(v).typ
}

// DefOf returns the instruction defining v, or nil for block arguments and undefs.
func (self *Function) DefOf(v ValueID) *Instr {
	if p := self.value(v); p.kind != VResult {
		return nil
	} else {
		return self.instrs[p.inst]
	}
}

// ResultIndex returns the result number of v within its defining instruction.
func (self *Function) ResultIndex(v ValueID) int {
	return self.value(v).index
}

// ArgBlock returns the block owning argument v.
func (self *Function) ArgBlock(v ValueID) *Block {
	if p := self.value(v); p.kind != VArg {
		return nil
	} else {
		return self.blocks[p.block]
	}
}

// Uses returns a snapshot of the use edges of v.
func (self *Function) Uses(v ValueID) []Use {
	return slices.Clone(self.value(v).uses)
}

func (self *Function) NumUses(v ValueID) int {
	return len(self.value(v).uses)
}

func (self *Function) HasUses(v ValueID) bool {
	return len(self.value(v).uses) != 0
}

// SingleUse returns the only use of v.
func (self *Function) SingleUse(v ValueID) (Use, bool) {
	if u := self.value(v).uses; len(u) != 1 {
		return Use{}, false
	} else {
		return u[0], true
	}
}

// Users returns the distinct instructions using v, in use-list order.
func (self *Function) Users(v ValueID) []*Instr {
	var ret []*Instr
	seen := make(map[InstrID]struct{})
	for _, u := range self.value(v).uses {
		if _, ok := seen[u.User]; !ok {
			seen[u.User] = struct{}{}
			ret = append(ret, self.instrs[u.User])
		}
	}
	return ret
}

// HasResultUses reports whether any result of p is used.
func (self *Function) HasResultUses(p *Instr) bool {
	for _, r := range p.Results {
		if self.HasUses(r) {
			return true
		}
	}
	return false
}

// IsTriviallyDead reports whether p has no used results and no observable side effects.
func (self *Function) IsTriviallyDead(p *Instr) bool {
	return !p.Op.HasSideEffects() && !self.HasResultUses(p)
}

/** Use lists **/

func (self *Function) addUse(v ValueID, user InstrID, slot int) int {
	p := self.value(v)
	p.uses = append(p.uses, Use{User: user, Slot: slot})
	return len(p.uses) - 1
}

func (self *Function) removeUse(v ValueID, pos int) {
	p := self.value(v)
	n := len(p.uses) - 1

	/* move the last use into the hole */
	if pos != n {
		u := p.uses[n]
		p.uses[pos] = u
		self.instrs[u.User].ops[u.Slot].pos = pos
	}

	/* shrink the use list */
	p.uses = p.uses[:n]
}

// SetOperand redirects operand slot i of p to v.
func (self *Function) SetOperand(p *Instr, i int, v ValueID) {
	op := &p.ops[i]
	self.removeUse(op.v, op.pos)
	op.v, op.pos = v, self.addUse(v, p.ID, i)
}

// ReplaceAllUsesWith redirects every use of old to repl. Both must have the same type.
func (self *Function) ReplaceAllUsesWith(old ValueID, repl ValueID) {
	if old == repl {
		panic(fmt.Sprintf("ir: replacing %s with itself in %s", old, self.Name))
	}

	/* check the type */
	if tx, ty := self.TypeOf(old), self.TypeOf(repl); tx != ty {
		panic(fmt.Sprintf("ir: type mismatch replacing %s : %s with %s : %s", old, tx, repl, ty))
	}

	/* redirect every use, the list shrinks as we go */
	for p := self.value(old); len(p.uses) != 0; {
		u := p.uses[len(p.uses)-1]
		self.SetOperand(self.instrs[u.User], u.Slot, repl)
	}
}

/** Instruction lifecycle **/

func (self *Function) newInstr(op Op, aux Aux, results []*Type, operands []ValueID) *Instr {
	p := &Instr{
		Aux: aux,
		ID:  InstrID(len(self.instrs)),
		Op:  op,
	}

	/* allocate the instruction */
	self.instrs = append(self.instrs, p)
	self.live++

	/* register use edges */
	p.ops = make([]_Operand, len(operands))
	for i, v := range operands {
		p.ops[i] = _Operand{v: v, pos: self.addUse(v, p.ID, i)}
	}

	/* create the results */
	for i, t := range results {
		p.Results = append(p.Results, self.newValue(_Value{
			kind:  VResult,
			typ:   t,
			inst:  p.ID,
			index: i,
		}))
	}
	return p
}

func (self *Function) link(p *Instr, bb *Block, before InstrID) {
	p.Block = bb.ID
	p.next = before

	/* append to the end of block */
	if before == NoInstr {
		p.prev = bb.last
		if bb.last == NoInstr {
			bb.first = p.ID
		} else {
			self.instrs[bb.last].next = p.ID
		}
		bb.last = p.ID
		return
	}

	/* insert before an existing instruction */
	q := self.instrs[before]
	if q.Block != bb.ID {
		panic(fmt.Sprintf("ir: insertion point %s is not in %s", q, bb.ID))
	}

	/* link the instruction in */
	p.prev = q.prev
	q.prev = p.ID
	if p.prev == NoInstr {
		bb.first = p.ID
	} else {
		self.instrs[p.prev].next = p.ID
	}
}

func (self *Function) unlink(p *Instr) {
	bb := self.blocks[p.Block]

	/* fix the previous link */
	if p.prev == NoInstr {
		bb.first = p.next
	} else {
		self.instrs[p.prev].next = p.next
	}

	/* fix the next link */
	if p.next == NoInstr {
		bb.last = p.prev
	} else {
		self.instrs[p.next].prev = p.prev
	}

	/* clear the links */
	p.prev = NoInstr
	p.next = NoInstr
}

// MoveBefore moves p right before q, possibly across blocks.
func (self *Function) MoveBefore(p *Instr, q *Instr) {
	self.unlink(p)
	self.link(p, self.blocks[q.Block], q.ID)
}

// Erase removes p from the function. Erasing an instruction with used results panics.
func (self *Function) Erase(p *Instr) {
	if self.instrs[p.ID] != p {
		panic(fmt.Sprintf("ir: double erase of %s in %s", p, self.Name))
	}

	/* check for remaining uses */
	for _, r := range p.Results {
		if self.HasUses(r) {
			panic(fmt.Sprintf("ir: erasing %s with remaining uses in %s", p, self.Name))
		}
	}

	/* unregister use edges, last slot first to keep positions stable */
	for i := len(p.ops) - 1; i >= 0; i-- {
		self.removeUse(p.ops[i].v, p.ops[i].pos)
	}

	/* release the results */
	for _, r := range p.Results {
		self.values[r] = _Value{}
	}

	/* remove from the block and the arena */
	self.unlink(p)
	self.instrs[p.ID] = nil
	self.live--
	p.ops = nil
}

// Position returns the index of p within its block.
func (self *Function) Position(p *Instr) int {
	n := 0
	for q := self.Prev(p); q != nil; q = self.Prev(q) {
		n++
	}
	return n
}
