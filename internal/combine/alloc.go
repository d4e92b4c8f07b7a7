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
)

func (self *Combiner) visitAllocStack(p *ir.Instr) _Edit {
	if e := self.narrowExistential(p); e.kind != _NoChange {
		return e
	} else {
		return self.removeWriteOnlyAlloc(p)
	}
}

// A stack allocated existential container, initialized exactly once with a concrete type
// and otherwise only destroyed or deallocated, can allocate the concrete type directly.
func (self *Combiner) narrowExistential(p *ir.Instr) _Edit {
	var init *ir.Instr
	var rest []*ir.Instr

	/* must be an existential container */
	fn := self.fn
	if p.Type.Kind != ir.KExistential {
		return noChange
	}

	/* check every user */
	for _, u := range fn.Users(p.Result()) {
		switch u.Op {
		case ir.OpInitExistentialAddr:
			if init != nil {
				return noChange
			}
			init = u
		case ir.OpDestroyAddr, ir.OpDeallocStack, ir.OpDebugValue:
			rest = append(rest, u)
		default:
			return noChange
		}
	}

	/* must be initialized */
	if init == nil {
		return noChange
	}

	/* allocate the concrete type, which replaces the initialized address */
	q := self.at(p).AllocStack(init.Type)
	self.replaceValue(init.Result(), q.Result())

	/* retarget the destroy and dealloc, debug info about the container is dropped */
	for _, u := range rest {
		if u.Op == ir.OpDebugValue {
			self.erase(u, "")
		} else {
			self.setOperand(u, 0, q.Result())
			self.wl.Add(u.ID)
		}
	}

	/* the container is gone */
	self.erase(init, "")
	self.erase(p, "alloc.existential")
	return erased
}

// A stack allocation of a trivial type that is only ever written to is dead, together with
// every projection, store, destroy and dealloc of it.
func (self *Combiner) removeWriteOnlyAlloc(p *ir.Instr) _Edit {
	var ins []*ir.Instr
	if !p.Type.IsTrivial() {
		return noChange
	}

	/* collect the users, innermost first */
	if !self.collectWriteOnly(p.Result(), &ins) {
		return noChange
	}

	/* erase them all */
	self.eraseAll(ins)
	self.erase(p, "alloc.write_only")
	return erased
}

func (self *Combiner) collectWriteOnly(addr ir.ValueID, ins *[]*ir.Instr) bool {
	for _, u := range self.fn.Users(addr) {
		switch u.Op {
		default:
			return false

		/* projections must be write-only as well */
		case ir.OpStructElementAddr, ir.OpTupleElementAddr, ir.OpUncheckedAddrCast:
			if !self.collectWriteOnly(u.Result(), ins) {
				return false
			}
		case ir.OpIndexAddr:
			if u.Operand(0) != addr || !self.collectWriteOnly(u.Result(), ins) {
				return false
			}

		/* storing the address itself lets it escape, and owned values would leak */
		case ir.OpStore:
			if u.Operand(0) == addr || !self.fn.TypeOf(u.Operand(0)).IsTrivial() {
				return false
			}

		/* plain writes, and the end of the lifetime */
		case ir.OpInjectEnumAddr, ir.OpDestroyAddr, ir.OpDeallocStack, ir.OpDebugValue:
			break
		}

		/* users are erased before the value they use */
		*ins = append(*ins, u)
	}
	return true
}
