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

// address_to_pointer(unchecked_addr_cast(a)) => address_to_pointer(a)
func (self *Combiner) visitAddressToPointer(p *ir.Instr) _Edit {
	if q := defOp(self.fn, p.Operand(0), ir.OpUncheckedAddrCast); q != nil {
		self.setOperand(p, 0, q.Operand(0))
		return changedInPlace("cast.address_to_pointer")
	} else {
		return noChange
	}
}

func (self *Combiner) visitPointerToAddress(p *ir.Instr) _Edit {
	if e := self.reduceIndexRawPointer(p); e.kind != _NoChange {
		return e
	}

	/* pointer_to_address(address_to_pointer(a)) : T => unchecked_addr_cast(a) : T */
	if q := defOp(self.fn, p.Operand(0), ir.OpAddressToPointer); q != nil {
		return replacedBy("cast.pointer_to_address", self.at(p).UncheckedAddrCast(q.Operand(0), p.Type))
	} else {
		return noChange
	}
}

func (self *Combiner) visitUncheckedAddrCast(p *ir.Instr) _Edit {
	switch q := self.fn.DefOf(p.Operand(0)); {
	case q == nil:
		return noChange

	/* unchecked_addr_cast(unchecked_addr_cast(a)) => unchecked_addr_cast(a) */
	case q.Op == ir.OpUncheckedAddrCast:
		self.setOperand(p, 0, q.Operand(0))
		return changedInPlace("cast.addr_chain")

	/* unchecked_addr_cast(pointer_to_address(x)) : T => pointer_to_address(x) : T */
	case q.Op == ir.OpPointerToAddress:
		return replacedBy("cast.addr_of_pointer", self.at(p).PointerToAddress(q.Operand(0), p.Type))

	/* nothing to do */
	default:
		return noChange
	}
}

// unchecked_ref_cast(upcast(x)) => unchecked_ref_cast(x), same for chained ref casts
func (self *Combiner) visitUncheckedRefCast(p *ir.Instr) _Edit {
	if q := defOp(self.fn, p.Operand(0), ir.OpUncheckedRefCast, ir.OpUpcast); q != nil {
		self.setOperand(p, 0, q.Operand(0))
		return changedInPlace("cast.ref_chain")
	} else {
		return noChange
	}
}

// upcast(upcast(x)) => upcast(x)
func (self *Combiner) visitUpcast(p *ir.Instr) _Edit {
	if q := defOp(self.fn, p.Operand(0), ir.OpUpcast); q != nil {
		self.setOperand(p, 0, q.Operand(0))
		return changedInPlace("cast.upcast_chain")
	} else {
		return noChange
	}
}

func (self *Combiner) visitUncheckedBitwiseCast(p *ir.Instr) _Edit {
	fn := self.fn

	/* unchecked_bitwise_cast(unchecked_bitwise_cast(x)) => unchecked_bitwise_cast(x) */
	if q := defOp(fn, p.Operand(0), ir.OpUncheckedBitwiseCast); q != nil {
		self.setOperand(p, 0, q.Operand(0))
		return changedInPlace("cast.bitwise_chain")
	}

	/* bit casts between references are reference casts */
	if fn.TypeOf(p.Operand(0)).IsClass() && p.Type.IsClass() {
		return replacedBy("cast.bitwise_ref", self.at(p).UncheckedRefCast(p.Operand(0), p.Type))
	} else {
		return noChange
	}
}

// ref_to_raw_pointer(unchecked_ref_cast(x)) => ref_to_raw_pointer(x), same for upcasts
func (self *Combiner) visitRefToRawPointer(p *ir.Instr) _Edit {
	if q := defOp(self.fn, p.Operand(0), ir.OpUncheckedRefCast, ir.OpUpcast); q != nil {
		self.setOperand(p, 0, q.Operand(0))
		return changedInPlace("cast.ref_to_raw_pointer")
	} else {
		return noChange
	}
}

// raw_pointer_to_ref(ref_to_raw_pointer(x)) : T => unchecked_ref_cast(x) : T
func (self *Combiner) visitRawPointerToRef(p *ir.Instr) _Edit {
	if q := defOp(self.fn, p.Operand(0), ir.OpRefToRawPointer); q != nil {
		return replacedBy("cast.raw_pointer_to_ref", self.at(p).UncheckedRefCast(q.Operand(0), p.Type))
	} else {
		return noChange
	}
}
