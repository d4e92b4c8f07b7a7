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
)

type _EditKind uint8

const (
	_NoChange _EditKind = iota
	_Replace
	_InPlace
	_Erased
)

// _Edit is the outcome of a peephole rule.
type _Edit struct {
	kind _EditKind
	repl *ir.Instr
	rule string
}

var noChange = _Edit{kind: _NoChange}

// replacedBy means every result of the visited instruction should be replaced by the
// corresponding result of q, which the rule created right before it.
func replacedBy(rule string, q *ir.Instr) _Edit {
	return _Edit{kind: _Replace, repl: q, rule: rule}
}

// changedInPlace means the visited instruction was mutated but keeps its identity.
func changedInPlace(rule string) _Edit {
	return _Edit{kind: _InPlace, rule: rule}
}

// erased means the rule already erased the visited instruction.
var erased = _Edit{kind: _Erased}

// at positions the builder right before p.
func (self *Combiner) at(p *ir.Instr) *ir.Builder {
	self.b.SetInsertionPoint(p)
	return self.b
}

// after positions the builder right after p.
func (self *Combiner) after(p *ir.Instr) *ir.Builder {
	self.b.SetInsertionPointAfter(p)
	return self.b
}

func (self *Combiner) visit(p *ir.Instr) _Edit {
	switch p.Op {
	case ir.OpIntegerLiteral, ir.OpFunctionRef, ir.OpStrideOf:
		return noChange
	case ir.OpThinToThickFunction:
		return noChange
	case ir.OpStruct, ir.OpTuple, ir.OpStructExtract, ir.OpEnum, ir.OpUncheckedEnumData:
		return noChange
	case ir.OpTupleExtract:
		return self.visitTupleExtract(p)
	case ir.OpStructElementAddr, ir.OpTupleElementAddr, ir.OpIndexAddr, ir.OpIndexRawPointer:
		return noChange
	case ir.OpAddressToPointer:
		return self.visitAddressToPointer(p)
	case ir.OpPointerToAddress:
		return self.visitPointerToAddress(p)
	case ir.OpUncheckedBitwiseCast:
		return self.visitUncheckedBitwiseCast(p)
	case ir.OpUncheckedRefCast:
		return self.visitUncheckedRefCast(p)
	case ir.OpUncheckedAddrCast:
		return self.visitUncheckedAddrCast(p)
	case ir.OpUpcast:
		return self.visitUpcast(p)
	case ir.OpRefToRawPointer:
		return self.visitRefToRawPointer(p)
	case ir.OpRawPointerToRef:
		return self.visitRawPointerToRef(p)
	case ir.OpBuiltinArith:
		return self.visitBuiltinArith(p)
	case ir.OpBuiltinChecked:
		return noChange
	case ir.OpRetain:
		return self.visitRetain(p)
	case ir.OpRelease:
		return self.visitRelease(p)
	case ir.OpAllocStack:
		return self.visitAllocStack(p)
	case ir.OpDeallocStack, ir.OpAllocRef, ir.OpStore, ir.OpDestroyAddr:
		return noChange
	case ir.OpLoad:
		return self.visitLoad(p)
	case ir.OpInitExistentialAddr, ir.OpInjectEnumAddr:
		return noChange
	case ir.OpApply:
		return self.visitApply(p)
	case ir.OpPartialApply:
		return self.visitPartialApply(p)
	case ir.OpClassMethod, ir.OpDebugValue:
		return noChange
	case ir.OpCondFail:
		return self.visitCondFail(p)
	case ir.OpBr, ir.OpReturn, ir.OpUnreachable:
		return noChange
	case ir.OpCondBr:
		return self.visitCondBr(p)
	case ir.OpSwitchEnum:
		return self.visitSwitchEnum(p)
	case ir.OpSwitchEnumAddr:
		return self.visitSwitchEnumAddr(p)
	default:
		panic(fmt.Sprintf("combine: unknown instruction: %s", p))
	}
}
