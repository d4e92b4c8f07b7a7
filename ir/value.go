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

type (
	ValueID int32
	InstrID int32
	BlockID int32
)

// NoValue, NoInstr and NoBlock are the invalid handles.
const (
	NoValue ValueID = 0
	NoInstr InstrID = 0
	NoBlock BlockID = 0
)

func (self ValueID) String() string {
	return fmt.Sprintf("%%%d", int32(self))
}

func (self InstrID) String() string {
	return fmt.Sprintf("#%d", int32(self))
}

func (self BlockID) String() string {
	return fmt.Sprintf("bb%d", int32(self))
}

type ValueKind uint8

const (
	VDead ValueKind = iota
	VResult
	VArg
	VUndef
)

// Use is a single operand slot of User that references a value.
type Use struct {
	User InstrID
	Slot int
}

type _Value struct {
	kind  ValueKind
	typ   *Type
	inst  InstrID
	block BlockID
	index int
	uses  []Use
}

// _Operand is an operand slot; pos is where the matching Use sits in the value's use list.
type _Operand struct {
	v   ValueID
	pos int
}
