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
	"fmt"

	"github.com/cloudwego/peephole/ir"
	"golang.org/x/exp/maps"
)

// Worklist is a deduplicating LIFO queue of instructions. Removed entries are replaced
// with a tombstone (ir.NoInstr) instead of being compacted, so the index map, not the
// backing slice, decides membership.
type Worklist struct {
	buf []ir.InstrID
	idx map[ir.InstrID]int
}

func NewWorklist() *Worklist {
	return &Worklist{idx: make(map[ir.InstrID]int)}
}

// Len returns the number of live entries.
func (self *Worklist) Len() int {
	return len(self.idx)
}

func (self *Worklist) Empty() bool {
	return len(self.idx) == 0
}

func (self *Worklist) Contains(id ir.InstrID) bool {
	_, ok := self.idx[id]
	return ok
}

// Add appends id unless it's already present.
func (self *Worklist) Add(id ir.InstrID) {
	if id == ir.NoInstr {
		panic("combine: adding an invalid instruction to the worklist")
	}
	if _, ok := self.idx[id]; !ok {
		self.idx[id] = len(self.buf)
		self.buf = append(self.buf, id)
	}
}

// Remove tombstones id if it's present.
func (self *Worklist) Remove(id ir.InstrID) {
	if i, ok := self.idx[id]; ok {
		if self.buf[i] != id {
			panic(fmt.Sprintf("combine: worklist index of %s points at %s", id, self.buf[i]))
		}
		self.buf[i] = ir.NoInstr
		delete(self.idx, id)
	}
}

// Pop removes and returns the most recently added live entry, or ir.NoInstr when empty.
func (self *Worklist) Pop() ir.InstrID {
	for n := len(self.buf); n > 0; n = len(self.buf) {
		id := self.buf[n-1]
		self.buf = self.buf[:n-1]

		/* skip tombstones */
		if id == ir.NoInstr {
			continue
		}

		/* remove from the index */
		delete(self.idx, id)
		return id
	}

	/* the backing slice must be exhausted together with the index */
	if len(self.idx) != 0 {
		panic(fmt.Sprintf("combine: worklist index has %d stale entries", len(self.idx)))
	}
	return ir.NoInstr
}

// AddInitialGroup installs ids in reverse, so that they are popped in their original order.
// The worklist must be empty and ids must not contain duplicates.
func (self *Worklist) AddInitialGroup(ids []ir.InstrID) {
	if len(self.idx) != 0 {
		panic("combine: initial group added to a non-empty worklist")
	}

	/* reset the backing slice, it may still hold tombstones */
	self.buf = self.buf[:0]
	for i := len(ids) - 1; i >= 0; i-- {
		if _, ok := self.idx[ids[i]]; ok {
			panic(fmt.Sprintf("combine: duplicated instruction %s in the initial group", ids[i]))
		}
		self.idx[ids[i]] = len(self.buf)
		self.buf = append(self.buf, ids[i])
	}
}

// AddUsersOf adds every instruction using v.
func (self *Worklist) AddUsersOf(fn *ir.Function, v ir.ValueID) {
	for _, u := range fn.Uses(v) {
		self.Add(u.User)
	}
}

// AddUsersOfResults adds every instruction using any result of p.
func (self *Worklist) AddUsersOfResults(fn *ir.Function, p *ir.Instr) {
	for _, r := range p.Results {
		self.AddUsersOf(fn, r)
	}
}

// Reset drops every entry.
func (self *Worklist) Reset() {
	self.buf = self.buf[:0]
	maps.Clear(self.idx)
}
