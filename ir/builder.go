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
)

// Builder creates instructions at an insertion point. Every instruction it creates is
// also recorded in a tracking list, which the owner drains with Drain.
type Builder struct {
	fn      *Function
	bb      *Block
	at      InstrID
	tracked []InstrID
}

func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

func (self *Builder) Func() *Function {
	return self.fn
}

// SetBlock makes the builder append to the end of bb.
func (self *Builder) SetBlock(bb *Block) {
	self.bb = bb
	self.at = NoInstr
}

// SetInsertionPoint makes the builder insert right before p.
func (self *Builder) SetInsertionPoint(p *Instr) {
	self.bb = self.fn.blocks[p.Block]
	self.at = p.ID
}

// SetInsertionPointAfter makes the builder insert right after p.
func (self *Builder) SetInsertionPointAfter(p *Instr) {
	self.bb = self.fn.blocks[p.Block]
	self.at = p.next
}

// Drain returns and clears the tracking list.
func (self *Builder) Drain() []InstrID {
	ret := self.tracked
	self.tracked = nil
	return ret
}

// CreateInstr creates an instruction of any kind at the insertion point.
func (self *Builder) CreateInstr(op Op, aux Aux, results []*Type, operands ...ValueID) *Instr {
	if self.bb == nil {
		panic("ir: builder has no insertion point")
	}
	p := self.fn.newInstr(op, aux, results, operands)
	self.fn.link(p, self.bb, self.at)
	self.tracked = append(self.tracked, p.ID)
	return p
}

func (self *Builder) one(op Op, aux Aux, typ *Type, operands ...ValueID) *Instr {
	return self.CreateInstr(op, aux, []*Type{typ}, operands...)
}

func (self *Builder) typeOf(v ValueID) *Type {
	return self.fn.TypeOf(v)
}

func (self *Builder) IntegerLiteral(t *Type, v int64) *Instr {
	return self.one(OpIntegerLiteral, Aux{Type: t, Int: v}, t)
}

func (self *Builder) FunctionRef(name string, t *Type) *Instr {
	if t.Kind != KFunc || t.Thick {
		panic("ir: function_ref of a non-thin function type: " + t.String())
	}
	return self.one(OpFunctionRef, Aux{Type: t, Name: name}, t)
}

func (self *Builder) ThinToThickFunction(v ValueID) *Instr {
	t := self.typeOf(v).Thicken()
	return self.one(OpThinToThickFunction, Aux{Type: t}, t, v)
}

// StrideOf yields the distance in bytes between two consecutive elements of type elem.
func (self *Builder) StrideOf(elem *Type) *Instr {
	return self.one(OpStrideOf, Aux{Type: elem}, Word)
}

func (self *Builder) Struct(t *Type, fields ...ValueID) *Instr {
	if t.Kind != KStruct || len(fields) != len(t.Fields) {
		panic("ir: invalid struct construction: " + t.String())
	}
	return self.one(OpStruct, Aux{Type: t}, t, fields...)
}

func (self *Builder) Tuple(elems ...ValueID) *Instr {
	tv := make([]*Type, len(elems))
	for i, v := range elems {
		tv[i] = self.typeOf(v)
	}
	t := TupleOf(tv...)
	return self.one(OpTuple, Aux{Type: t}, t, elems...)
}

func (self *Builder) StructExtract(v ValueID, field int) *Instr {
	return self.one(OpStructExtract, Aux{Index: field}, self.typeOf(v).FieldType(field), v)
}

func (self *Builder) TupleExtract(v ValueID, elem int) *Instr {
	return self.one(OpTupleExtract, Aux{Index: elem}, self.typeOf(v).FieldType(elem), v)
}

// Enum constructs case c of t, payload is NoValue for payload-less cases.
func (self *Builder) Enum(t *Type, c int, payload ValueID) *Instr {
	if payload == NoValue {
		return self.one(OpEnum, Aux{Type: t, Index: c}, t)
	} else {
		return self.one(OpEnum, Aux{Type: t, Index: c}, t, payload)
	}
}

func (self *Builder) UncheckedEnumData(v ValueID, c int) *Instr {
	t := self.typeOf(v)
	if t.Kind != KEnum || t.Cases[c].Payload == nil {
		panic(fmt.Sprintf("ir: case #%d of %s has no payload", c, t))
	}
	return self.one(OpUncheckedEnumData, Aux{Index: c}, t.Cases[c].Payload, v)
}

func (self *Builder) StructElementAddr(addr ValueID, field int) *Instr {
	return self.one(OpStructElementAddr, Aux{Index: field}, self.elem(addr).FieldType(field).Addr(), addr)
}

func (self *Builder) TupleElementAddr(addr ValueID, elem int) *Instr {
	return self.one(OpTupleElementAddr, Aux{Index: elem}, self.elem(addr).FieldType(elem).Addr(), addr)
}

func (self *Builder) IndexAddr(addr ValueID, index ValueID) *Instr {
	return self.one(OpIndexAddr, Aux{}, self.typeOf(addr), addr, index)
}

func (self *Builder) IndexRawPointer(ptr ValueID, offset ValueID) *Instr {
	return self.one(OpIndexRawPointer, Aux{}, RawPointer(), ptr, offset)
}

func (self *Builder) elem(addr ValueID) *Type {
	if t := self.typeOf(addr); t.Kind != KAddress {
		panic("ir: not an address: " + t.String())
	} else {
		return t.Elem
	}
}

func (self *Builder) AddressToPointer(addr ValueID) *Instr {
	return self.one(OpAddressToPointer, Aux{Type: RawPointer()}, RawPointer(), addr)
}

// PointerToAddress reinterprets a raw pointer as an address of type t.
func (self *Builder) PointerToAddress(ptr ValueID, t *Type) *Instr {
	return self.cast(OpPointerToAddress, ptr, t)
}

func (self *Builder) UncheckedBitwiseCast(v ValueID, t *Type) *Instr {
	return self.cast(OpUncheckedBitwiseCast, v, t)
}

func (self *Builder) UncheckedRefCast(v ValueID, t *Type) *Instr {
	return self.cast(OpUncheckedRefCast, v, t)
}

func (self *Builder) UncheckedAddrCast(v ValueID, t *Type) *Instr {
	return self.cast(OpUncheckedAddrCast, v, t)
}

func (self *Builder) Upcast(v ValueID, t *Type) *Instr {
	if !self.typeOf(v).IsSubclassOf(t) {
		panic(fmt.Sprintf("ir: %s is not a subclass of %s", self.typeOf(v), t))
	}
	return self.cast(OpUpcast, v, t)
}

func (self *Builder) RefToRawPointer(v ValueID) *Instr {
	return self.cast(OpRefToRawPointer, v, RawPointer())
}

func (self *Builder) RawPointerToRef(v ValueID, t *Type) *Instr {
	return self.cast(OpRawPointerToRef, v, t)
}

// Cast creates a cast of any kind.
func (self *Builder) Cast(op Op, v ValueID, t *Type) *Instr {
	if !op.IsCast() {
		panic("ir: not a cast: " + op.String())
	}
	return self.cast(op, v, t)
}

func (self *Builder) cast(op Op, v ValueID, t *Type) *Instr {
	return self.one(op, Aux{Type: t}, t, v)
}

func (self *Builder) Arith(op ArithOp, x ValueID, y ValueID) *Instr {
	return self.one(OpBuiltinArith, Aux{Arith: op}, self.typeOf(x), x, y)
}

// Checked creates an overflow-checked operation yielding (value, overflow).
func (self *Builder) Checked(op ArithOp, x ValueID, y ValueID) *Instr {
	return self.one(OpBuiltinChecked, Aux{Arith: op}, TupleOf(self.typeOf(x), Int1), x, y)
}

func (self *Builder) Retain(v ValueID) *Instr {
	return self.CreateInstr(OpRetain, Aux{}, nil, v)
}

func (self *Builder) Release(v ValueID) *Instr {
	return self.CreateInstr(OpRelease, Aux{}, nil, v)
}

func (self *Builder) AllocStack(t *Type) *Instr {
	return self.one(OpAllocStack, Aux{Type: t}, t.Addr())
}

func (self *Builder) DeallocStack(addr ValueID) *Instr {
	return self.CreateInstr(OpDeallocStack, Aux{}, nil, addr)
}

func (self *Builder) AllocRef(t *Type) *Instr {
	if t.Kind != KClass {
		panic("ir: alloc_ref of a non-class type: " + t.String())
	}
	return self.one(OpAllocRef, Aux{Type: t}, t)
}

func (self *Builder) Load(addr ValueID) *Instr {
	return self.one(OpLoad, Aux{}, self.elem(addr), addr)
}

func (self *Builder) Store(v ValueID, addr ValueID) *Instr {
	return self.CreateInstr(OpStore, Aux{}, nil, v, addr)
}

func (self *Builder) DestroyAddr(addr ValueID) *Instr {
	return self.CreateInstr(OpDestroyAddr, Aux{}, nil, addr)
}

// InitExistentialAddr prepares an existential container for a value of type concrete.
func (self *Builder) InitExistentialAddr(addr ValueID, concrete *Type) *Instr {
	return self.one(OpInitExistentialAddr, Aux{Type: concrete}, concrete.Addr(), addr)
}

func (self *Builder) InjectEnumAddr(addr ValueID, c int) *Instr {
	return self.CreateInstr(OpInjectEnumAddr, Aux{Index: c}, nil, addr)
}

// Apply calls callee. The callee may be thin or thick; subst specializes a generic callee.
func (self *Builder) Apply(callee ValueID, args []ValueID, subst SubstMap) *Instr {
	t := self.typeOf(callee).Subst(subst)
	if t.Kind != KFunc || len(t.Params) != len(args) {
		panic("ir: invalid call to " + t.String())
	}
	return self.CreateInstr(OpApply, Aux{Subst: subst}, t.Results, append([]ValueID{callee}, args...)...)
}

// PartialApply captures the trailing parameters of callee and yields a thick closure.
func (self *Builder) PartialApply(callee ValueID, captured []ValueID, subst SubstMap) *Instr {
	t := self.typeOf(callee).Subst(subst)
	n := len(t.Params) - len(captured)
	if t.Kind != KFunc || n < 0 {
		panic("ir: invalid partial application of " + t.String())
	}
	ct := FuncOf(t.Params[:n], t.Results, true)
	return self.one(OpPartialApply, Aux{Type: ct, Subst: subst}, ct, append([]ValueID{callee}, captured...)...)
}

func (self *Builder) ClassMethod(obj ValueID, method string, t *Type) *Instr {
	return self.one(OpClassMethod, Aux{Type: t, Name: method}, t, obj)
}

func (self *Builder) DebugValue(v ValueID) *Instr {
	return self.CreateInstr(OpDebugValue, Aux{}, nil, v)
}

func (self *Builder) CondFail(cond ValueID) *Instr {
	return self.CreateInstr(OpCondFail, Aux{}, nil, cond)
}

func (self *Builder) Br(dest *Block, args ...ValueID) *Instr {
	return self.CreateInstr(OpBr, Aux{Succs: []Successor{{Block: dest.ID, Args: len(args)}}}, nil, args...)
}

func (self *Builder) CondBr(cond ValueID, t *Block, targs []ValueID, f *Block, fargs []ValueID) *Instr {
	ops := append(append([]ValueID{cond}, targs...), fargs...)
	succ := []Successor{{Block: t.ID, Args: len(targs)}, {Block: f.ID, Args: len(fargs)}}
	return self.CreateInstr(OpCondBr, Aux{Succs: succ}, nil, ops...)
}

// SwitchEnum branches on the case of an enum value. Use DefaultCase for the fallback.
func (self *Builder) SwitchEnum(v ValueID, succs ...Successor) *Instr {
	return self.CreateInstr(OpSwitchEnum, Aux{Succs: succs}, nil, v)
}

// SwitchEnumAddr branches on the case of an enum stored at addr.
func (self *Builder) SwitchEnumAddr(addr ValueID, succs ...Successor) *Instr {
	return self.CreateInstr(OpSwitchEnumAddr, Aux{Succs: succs}, nil, addr)
}

func (self *Builder) Return(vals ...ValueID) *Instr {
	return self.CreateInstr(OpReturn, Aux{}, nil, vals...)
}

func (self *Builder) Unreachable() *Instr {
	return self.CreateInstr(OpUnreachable, Aux{}, nil)
}
