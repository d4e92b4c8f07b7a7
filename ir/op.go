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

type Op uint8

const (
	OpInvalid Op = iota

	/* literals and function values */
	OpIntegerLiteral
	OpFunctionRef
	OpThinToThickFunction
	OpStrideOf

	/* aggregates */
	OpStruct
	OpTuple
	OpStructExtract
	OpTupleExtract
	OpEnum
	OpUncheckedEnumData

	/* address projections */
	OpStructElementAddr
	OpTupleElementAddr
	OpIndexAddr
	OpIndexRawPointer

	/* casts */
	OpAddressToPointer
	OpPointerToAddress
	OpUncheckedBitwiseCast
	OpUncheckedRefCast
	OpUncheckedAddrCast
	OpUpcast
	OpRefToRawPointer
	OpRawPointerToRef

	/* arithmetic */
	OpBuiltinArith
	OpBuiltinChecked

	/* reference counting */
	OpRetain
	OpRelease

	/* memory */
	OpAllocStack
	OpDeallocStack
	OpAllocRef
	OpLoad
	OpStore
	OpDestroyAddr
	OpInitExistentialAddr
	OpInjectEnumAddr

	/* calls */
	OpApply
	OpPartialApply
	OpClassMethod

	/* miscellaneous */
	OpDebugValue
	OpCondFail

	/* terminators */
	OpBr
	OpCondBr
	OpSwitchEnum
	OpSwitchEnumAddr
	OpReturn
	OpUnreachable

	_OpMax
)

// Effect classifies what an instruction may do besides producing its results.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectRead
	EffectAlloc
	EffectDebug
	EffectWrite
	EffectDealloc
	EffectRefCount
	EffectCall
	EffectTrap
	EffectTerminator
)

type _OpInfo struct {
	name   string
	effect Effect
}

var _OpTab = [_OpMax]_OpInfo{
	OpIntegerLiteral:       {"integer_literal", EffectNone},
	OpFunctionRef:          {"function_ref", EffectNone},
	OpThinToThickFunction:  {"thin_to_thick_function", EffectNone},
	OpStrideOf:             {"strideof", EffectNone},
	OpStruct:               {"struct", EffectNone},
	OpTuple:                {"tuple", EffectNone},
	OpStructExtract:        {"struct_extract", EffectNone},
	OpTupleExtract:         {"tuple_extract", EffectNone},
	OpEnum:                 {"enum", EffectNone},
	OpUncheckedEnumData:    {"unchecked_enum_data", EffectNone},
	OpStructElementAddr:    {"struct_element_addr", EffectNone},
	OpTupleElementAddr:     {"tuple_element_addr", EffectNone},
	OpIndexAddr:            {"index_addr", EffectNone},
	OpIndexRawPointer:      {"index_raw_pointer", EffectNone},
	OpAddressToPointer:     {"address_to_pointer", EffectNone},
	OpPointerToAddress:     {"pointer_to_address", EffectNone},
	OpUncheckedBitwiseCast: {"unchecked_bitwise_cast", EffectNone},
	OpUncheckedRefCast:     {"unchecked_ref_cast", EffectNone},
	OpUncheckedAddrCast:    {"unchecked_addr_cast", EffectNone},
	OpUpcast:               {"upcast", EffectNone},
	OpRefToRawPointer:      {"ref_to_raw_pointer", EffectNone},
	OpRawPointerToRef:      {"raw_pointer_to_ref", EffectNone},
	OpBuiltinArith:         {"builtin", EffectNone},
	OpBuiltinChecked:       {"builtin_checked", EffectNone},
	OpRetain:               {"retain", EffectRefCount},
	OpRelease:              {"release", EffectRefCount},
	OpAllocStack:           {"alloc_stack", EffectAlloc},
	OpDeallocStack:         {"dealloc_stack", EffectDealloc},
	OpAllocRef:             {"alloc_ref", EffectAlloc},
	OpLoad:                 {"load", EffectRead},
	OpStore:                {"store", EffectWrite},
	OpDestroyAddr:          {"destroy_addr", EffectWrite},
	OpInitExistentialAddr:  {"init_existential_addr", EffectWrite},
	OpInjectEnumAddr:       {"inject_enum_addr", EffectWrite},
	OpApply:                {"apply", EffectCall},
	OpPartialApply:         {"partial_apply", EffectRefCount},
	OpClassMethod:          {"class_method", EffectNone},
	OpDebugValue:           {"debug_value", EffectDebug},
	OpCondFail:             {"cond_fail", EffectTrap},
	OpBr:                   {"br", EffectTerminator},
	OpCondBr:               {"cond_br", EffectTerminator},
	OpSwitchEnum:           {"switch_enum", EffectTerminator},
	OpSwitchEnumAddr:       {"switch_enum_addr", EffectTerminator},
	OpReturn:               {"return", EffectTerminator},
	OpUnreachable:          {"unreachable", EffectTerminator},
}

func (self Op) String() string {
	if self == OpInvalid || self >= _OpMax {
		return fmt.Sprintf("<op %d>", uint8(self))
	} else {
		return _OpTab[self].name
	}
}

func (self Op) Effect() Effect {
	if self == OpInvalid || self >= _OpMax {
		panic(fmt.Sprintf("ir: invalid op: %d", uint8(self)))
	} else {
		return _OpTab[self].effect
	}
}

func (self Op) IsTerminator() bool {
	return self.Effect() == EffectTerminator
}

// HasSideEffects reports whether removing an unused instance of this op is observable.
func (self Op) HasSideEffects() bool {
	switch self.Effect() {
	case EffectNone, EffectRead, EffectAlloc:
		return false
	default:
		return true
	}
}

// IsCast reports whether the op reinterprets a single operand as another type.
func (self Op) IsCast() bool {
	switch self {
	case OpAddressToPointer, OpPointerToAddress, OpUncheckedBitwiseCast, OpUncheckedRefCast:
		return true
	case OpUncheckedAddrCast, OpUpcast, OpRefToRawPointer, OpRawPointerToRef:
		return true
	default:
		return false
	}
}

// ArithOp selects the operation of builtin arithmetic instructions.
type ArithOp uint8

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
)

func (self ArithOp) String() string {
	switch self {
	case ArithAdd:
		return "add"
	case ArithSub:
		return "sub"
	case ArithMul:
		return "mul"
	default:
		panic("unreachable")
	}
}

// Effects summarizes what calling a function may do.
type Effects uint8

const (
	EffectsUnknown Effects = iota
	EffectsReadNone
	EffectsReadOnly
	EffectsReadWrite
)

func (self Effects) String() string {
	switch self {
	case EffectsUnknown:
		return "unknown"
	case EffectsReadNone:
		return "readnone"
	case EffectsReadOnly:
		return "readonly"
	case EffectsReadWrite:
		return "readwrite"
	default:
		return fmt.Sprintf("effects(%d)", uint8(self))
	}
}

// IsPure reports whether a call with these effects is unobservable once its results are unused.
func (self Effects) IsPure() bool {
	return self == EffectsReadNone || self == EffectsReadOnly
}
