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
	"sort"
	"strings"
	"sync"
)

type Kind uint8

const (
	KInt Kind = iota + 1
	KRawPointer
	KAddress
	KStruct
	KTuple
	KEnum
	KClass
	KExistential
	KFunc
	KParam
)

type Field struct {
	Name string
	Type *Type
}

type Case struct {
	Name    string
	Payload *Type
}

type Param struct {
	Type  *Type
	Owned bool
}

// Type is an interned static type. Two types are equal iff their pointers are equal.
type Type struct {
	Kind    Kind
	Name    string
	Bits    int
	Elem    *Type
	Super   *Type
	Fields  []Field
	Elems   []*Type
	Cases   []Case
	Params  []Param
	Results []*Type
	Thick   bool
	key     string
}

var _Types = struct {
	sync.Mutex
	m map[string]*Type
}{m: make(map[string]*Type)}

func intern(t *Type) *Type {
	t.key = t.mkkey()
	_Types.Lock()
	defer _Types.Unlock()

	/* check for existing types */
	if v, ok := _Types.m[t.key]; ok {
		return v
	}

	/* add to type table */
	_Types.m[t.key] = t
	return t
}

func (self *Type) mkkey() string {
	switch self.Kind {
	case KInt:
		return fmt.Sprintf("i%d", self.Bits)
	case KRawPointer:
		return "rawptr"
	case KAddress:
		return "*" + self.Elem.key
	case KParam:
		return "'" + self.Name
	case KExistential:
		return "any " + self.Name
	case KClass:
		if self.Super == nil {
			return "class " + self.Name
		} else {
			return "class " + self.Name + ":" + self.Super.key
		}
	case KStruct:
		buf := make([]string, 0, len(self.Fields))
		for _, f := range self.Fields {
			buf = append(buf, f.Name+":"+f.Type.key)
		}
		return "struct " + self.Name + "{" + strings.Join(buf, ",") + "}"
	case KTuple:
		return "(" + typekeys(self.Elems) + ")"
	case KEnum:
		buf := make([]string, 0, len(self.Cases))
		for _, c := range self.Cases {
			if c.Payload == nil {
				buf = append(buf, c.Name)
			} else {
				buf = append(buf, c.Name+"("+c.Payload.key+")")
			}
		}
		return "enum " + self.Name + "{" + strings.Join(buf, ",") + "}"
	case KFunc:
		buf := make([]string, 0, len(self.Params))
		for _, p := range self.Params {
			if p.Owned {
				buf = append(buf, "owned "+p.Type.key)
			} else {
				buf = append(buf, p.Type.key)
			}
		}
		if self.Thick {
			return "thick(" + strings.Join(buf, ",") + ")->(" + typekeys(self.Results) + ")"
		} else {
			return "thin(" + strings.Join(buf, ",") + ")->(" + typekeys(self.Results) + ")"
		}
	default:
		panic(fmt.Sprintf("ir: invalid type kind: %d", self.Kind))
	}
}

func typekeys(v []*Type) string {
	buf := make([]string, 0, len(v))
	for _, t := range v {
		buf = append(buf, t.key)
	}
	return strings.Join(buf, ",")
}

func Int(bits int) *Type {
	return intern(&Type{Kind: KInt, Bits: bits})
}

var (
	Int1  = Int(1)
	Int8  = Int(8)
	Int32 = Int(32)
	Int64 = Int(64)
	Word  = Int(64)
)

func RawPointer() *Type {
	return intern(&Type{Kind: KRawPointer})
}

func AddressOf(elem *Type) *Type {
	if elem.Kind == KAddress {
		panic("ir: address of address type: " + elem.String())
	}
	return intern(&Type{Kind: KAddress, Elem: elem})
}

func StructOf(name string, fields ...Field) *Type {
	return intern(&Type{Kind: KStruct, Name: name, Fields: fields})
}

func TupleOf(elems ...*Type) *Type {
	return intern(&Type{Kind: KTuple, Elems: elems})
}

func EnumOf(name string, cases ...Case) *Type {
	return intern(&Type{Kind: KEnum, Name: name, Cases: cases})
}

func ClassOf(name string, super *Type) *Type {
	if super != nil && super.Kind != KClass {
		panic("ir: superclass is not a class type: " + super.String())
	}
	return intern(&Type{Kind: KClass, Name: name, Super: super})
}

func ExistentialOf(name string) *Type {
	return intern(&Type{Kind: KExistential, Name: name})
}

func FuncOf(params []Param, results []*Type, thick bool) *Type {
	return intern(&Type{Kind: KFunc, Params: params, Results: results, Thick: thick})
}

func ParamOf(name string) *Type {
	return intern(&Type{Kind: KParam, Name: name})
}

// Addr returns the address type of self.
func (self *Type) Addr() *Type {
	return AddressOf(self)
}

// Thicken returns the context-carrying variant of a function type.
func (self *Type) Thicken() *Type {
	if self.Kind != KFunc {
		panic("ir: thicken a non-function type: " + self.String())
	}
	return FuncOf(self.Params, self.Results, true)
}

func (self *Type) IsAddress() bool {
	return self.Kind == KAddress
}

func (self *Type) IsClass() bool {
	return self.Kind == KClass
}

// IsTrivial reports whether values of this type need no reference counting.
func (self *Type) IsTrivial() bool {
	switch self.Kind {
	case KInt, KRawPointer, KAddress:
		return true
	case KFunc:
		return !self.Thick
	case KStruct:
		for _, f := range self.Fields {
			if !f.Type.IsTrivial() {
				return false
			}
		}
		return true
	case KTuple:
		for _, t := range self.Elems {
			if !t.IsTrivial() {
				return false
			}
		}
		return true
	case KEnum:
		for _, c := range self.Cases {
			if c.Payload != nil && !c.Payload.IsTrivial() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsSubclassOf reports whether self is super or one of its subclasses.
func (self *Type) IsSubclassOf(super *Type) bool {
	for t := self; t != nil; t = t.Super {
		if t == super {
			return true
		}
	}
	return false
}

// FieldType returns the type of the i-th field of a struct or the i-th element of a tuple.
func (self *Type) FieldType(i int) *Type {
	switch self.Kind {
	case KStruct:
		return self.Fields[i].Type
	case KTuple:
		return self.Elems[i]
	default:
		panic("ir: not an aggregate type: " + self.String())
	}
}

// NumFields returns the number of fields of a struct or elements of a tuple.
func (self *Type) NumFields() int {
	switch self.Kind {
	case KStruct:
		return len(self.Fields)
	case KTuple:
		return len(self.Elems)
	default:
		return 0
	}
}

// CaseIndex returns the index of the named enum case, or -1.
func (self *Type) CaseIndex(name string) int {
	for i, c := range self.Cases {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (self *Type) IsGeneric() bool {
	switch self.Kind {
	case KParam:
		return true
	case KAddress:
		return self.Elem.IsGeneric()
	case KStruct:
		for _, f := range self.Fields {
			if f.Type.IsGeneric() {
				return true
			}
		}
	case KTuple:
		for _, t := range self.Elems {
			if t.IsGeneric() {
				return true
			}
		}
	case KEnum:
		for _, c := range self.Cases {
			if c.Payload != nil && c.Payload.IsGeneric() {
				return true
			}
		}
	case KFunc:
		for _, p := range self.Params {
			if p.Type.IsGeneric() {
				return true
			}
		}
		for _, t := range self.Results {
			if t.IsGeneric() {
				return true
			}
		}
	}
	return false
}

// Subst replaces generic parameters with their substitutions.
func (self *Type) Subst(m SubstMap) *Type {
	if len(m) == 0 || !self.IsGeneric() {
		return self
	}

	/* rebuild the type recursively */
	switch self.Kind {
	case KParam:
		if t, ok := m[self.Name]; ok {
			return t
		} else {
			return self
		}
	case KAddress:
		return AddressOf(self.Elem.Subst(m))
	case KTuple:
		return TupleOf(substall(self.Elems, m)...)
	case KStruct:
		fields := make([]Field, len(self.Fields))
		for i, f := range self.Fields {
			fields[i] = Field{Name: f.Name, Type: f.Type.Subst(m)}
		}
		return StructOf(self.Name, fields...)
	case KEnum:
		cases := make([]Case, len(self.Cases))
		for i, c := range self.Cases {
			cases[i] = c
			if c.Payload != nil {
				cases[i].Payload = c.Payload.Subst(m)
			}
		}
		return EnumOf(self.Name, cases...)
	case KFunc:
		params := make([]Param, len(self.Params))
		for i, p := range self.Params {
			params[i] = Param{Type: p.Type.Subst(m), Owned: p.Owned}
		}
		return FuncOf(params, substall(self.Results, m), self.Thick)
	default:
		return self
	}
}

func substall(v []*Type, m SubstMap) []*Type {
	r := make([]*Type, len(v))
	for i, t := range v {
		r[i] = t.Subst(m)
	}
	return r
}

func (self *Type) String() string {
	switch self.Kind {
	case KInt:
		return fmt.Sprintf("Int%d", self.Bits)
	case KRawPointer:
		return "RawPointer"
	case KAddress:
		return "*" + self.Elem.String()
	case KParam:
		return "τ_" + self.Name
	case KExistential:
		return "any " + self.Name
	case KClass, KStruct, KEnum:
		return self.Name
	case KTuple:
		return "(" + typenames(self.Elems) + ")"
	case KFunc:
		buf := make([]string, 0, len(self.Params))
		for _, p := range self.Params {
			if p.Owned {
				buf = append(buf, "@owned "+p.Type.String())
			} else {
				buf = append(buf, p.Type.String())
			}
		}
		sig := "(" + strings.Join(buf, ", ") + ") -> (" + typenames(self.Results) + ")"
		if self.Thick {
			return "@thick " + sig
		} else {
			return "@thin " + sig
		}
	default:
		return "<invalid>"
	}
}

func typenames(v []*Type) string {
	buf := make([]string, 0, len(v))
	for _, t := range v {
		buf = append(buf, t.String())
	}
	return strings.Join(buf, ", ")
}

// SubstMap maps generic parameter names to concrete types.
type SubstMap map[string]*Type

// Key returns the canonical spelling of the substitution, stable across map orderings.
func (self SubstMap) Key() string {
	keys := make([]string, 0, len(self))
	for k := range self {
		keys = append(keys, k)
	}

	/* sort by parameter name */
	sort.Strings(keys)
	buf := make([]string, 0, len(keys))

	/* dump every substitution */
	for _, k := range keys {
		buf = append(buf, k+"="+self[k].key)
	}
	return strings.Join(buf, ";")
}

func (self SubstMap) String() string {
	keys := make([]string, 0, len(self))
	for k := range self {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := make([]string, 0, len(keys))
	for _, k := range keys {
		buf = append(buf, "τ_"+k+" := "+self[k].String())
	}
	return "<" + strings.Join(buf, ", ") + ">"
}

// Compose applies other to every substitution in self.
func (self SubstMap) Compose(other SubstMap) SubstMap {
	if len(self) == 0 {
		return nil
	}
	ret := make(SubstMap, len(self))
	for k, t := range self {
		ret[k] = t.Subst(other)
	}
	return ret
}
