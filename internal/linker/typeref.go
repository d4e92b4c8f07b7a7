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

package linker

import (
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cloudwego/peephole/ir"
)

/* Thrift field IDs of type descriptors:
 *
 *   struct TypeRef {
 *       1: i32           kind
 *       2: i32           bits     // int
 *       3: string        name     // struct, enum, class, existential, generic parameter
 *       4: list<TypeRef> elems    // struct fields, tuple elements, enum payloads, results
 *       5: list<string>  names    // struct fields, enum cases
 *       6: TypeRef       elem     // address element, superclass
 *       7: list<bool>    flags    // owned parameters, enum cases with payload
 *       8: bool          thick
 *       9: list<TypeRef> params
 *   }
 */
const (
	_F_kind   = 1
	_F_bits   = 2
	_F_tname  = 3
	_F_elems  = 4
	_F_names  = 5
	_F_elem   = 6
	_F_flags  = 7
	_F_thick  = 8
	_F_params = 9
)

const (
	_MaxTypeDepth = 64
)

type _TypeWriter struct {
	enc *thrift.TBinaryProtocol
	err error
}

func encodeType(enc *thrift.TBinaryProtocol, t *ir.Type) error {
	w := _TypeWriter{enc: enc}
	w.typ(t)
	return w.err
}

func (self *_TypeWriter) begin(name string, tt thrift.TType, id int16) bool {
	if self.err == nil {
		self.err = self.enc.WriteFieldBegin(name, tt, id)
	}
	return self.err == nil
}

func (self *_TypeWriter) end() {
	if self.err == nil {
		self.err = self.enc.WriteFieldEnd()
	}
}

func (self *_TypeWriter) list(et thrift.TType, n int, fn func(i int)) {
	if self.err = self.enc.WriteListBegin(et, n); self.err != nil {
		return
	}
	for i := 0; i < n && self.err == nil; i++ {
		fn(i)
	}
	if self.err == nil {
		self.err = self.enc.WriteListEnd()
	}
}

func (self *_TypeWriter) i32(name string, id int16, v int) {
	if self.begin(name, thrift.I32, id) {
		self.err = self.enc.WriteI32(int32(v))
		self.end()
	}
}

func (self *_TypeWriter) str(name string, id int16, v string) {
	if self.begin(name, thrift.STRING, id) {
		self.err = self.enc.WriteString(v)
		self.end()
	}
}

func (self *_TypeWriter) ref(name string, id int16, t *ir.Type) {
	if t != nil && self.begin(name, thrift.STRUCT, id) {
		self.typ(t)
		self.end()
	}
}

func (self *_TypeWriter) types(name string, id int16, v []*ir.Type) {
	if len(v) != 0 && self.begin(name, thrift.LIST, id) {
		self.list(thrift.STRUCT, len(v), func(i int) { self.typ(v[i]) })
		self.end()
	}
}

func (self *_TypeWriter) strs(name string, id int16, v []string) {
	if len(v) != 0 && self.begin(name, thrift.LIST, id) {
		self.list(thrift.STRING, len(v), func(i int) { self.err = self.enc.WriteString(v[i]) })
		self.end()
	}
}

func (self *_TypeWriter) flags(name string, id int16, v []bool) {
	if len(v) != 0 && self.begin(name, thrift.LIST, id) {
		self.list(thrift.BOOL, len(v), func(i int) { self.err = self.enc.WriteBool(v[i]) })
		self.end()
	}
}

func (self *_TypeWriter) typ(t *ir.Type) {
	if self.err == nil {
		self.err = self.enc.WriteStructBegin("TypeRef")
	}

	/* every kind has its own fields */
	self.i32("kind", _F_kind, int(t.Kind))
	switch t.Kind {
	case ir.KInt:
		self.i32("bits", _F_bits, t.Bits)
	case ir.KRawPointer:
		break
	case ir.KAddress:
		self.ref("elem", _F_elem, t.Elem)
	case ir.KParam, ir.KExistential:
		self.str("name", _F_tname, t.Name)
	case ir.KClass:
		self.str("name", _F_tname, t.Name)
		self.ref("elem", _F_elem, t.Super)
	case ir.KTuple:
		self.types("elems", _F_elems, t.Elems)
	case ir.KStruct:
		names := make([]string, len(t.Fields))
		types := make([]*ir.Type, len(t.Fields))
		for i, f := range t.Fields {
			names[i], types[i] = f.Name, f.Type
		}
		self.str("name", _F_tname, t.Name)
		self.strs("names", _F_names, names)
		self.types("elems", _F_elems, types)
	case ir.KEnum:
		var payloads []*ir.Type
		names := make([]string, len(t.Cases))
		flags := make([]bool, len(t.Cases))
		for i, c := range t.Cases {
			names[i], flags[i] = c.Name, c.Payload != nil
			if c.Payload != nil {
				payloads = append(payloads, c.Payload)
			}
		}
		self.str("name", _F_tname, t.Name)
		self.strs("names", _F_names, names)
		self.flags("flags", _F_flags, flags)
		self.types("elems", _F_elems, payloads)
	case ir.KFunc:
		types := make([]*ir.Type, len(t.Params))
		owned := make([]bool, len(t.Params))
		for i, p := range t.Params {
			types[i], owned[i] = p.Type, p.Owned
		}
		self.types("params", _F_params, types)
		self.flags("flags", _F_flags, owned)
		self.types("elems", _F_elems, t.Results)
		if self.begin("thick", thrift.BOOL, _F_thick) {
			self.err = self.enc.WriteBool(t.Thick)
			self.end()
		}
	default:
		panic(fmt.Sprintf("linker: invalid type kind: %d", t.Kind))
	}

	/* end of struct */
	if self.err == nil {
		self.err = self.enc.WriteFieldStop()
	}
	if self.err == nil {
		self.err = self.enc.WriteStructEnd()
	}
}

type _TypeRef struct {
	kind   int32
	bits   int32
	name   string
	elems  []*ir.Type
	names  []string
	elem   *ir.Type
	flags  []bool
	thick  bool
	params []*ir.Type
}

// epropagate keeps errors that already carry a path.
func epropagate(path string, err error) error {
	if e, ok := err.(SummaryError); ok {
		return e
	} else {
		return esyntax(path, err)
	}
}

func decodeType(dec *thrift.TBinaryProtocol, path string, depth int) (*ir.Type, error) {
	var ret _TypeRef
	if depth > _MaxTypeDepth {
		return nil, ereason(path, "type nesting is too deep")
	}

	/* TypeRef header */
	if _, err := dec.ReadStructBegin(); err != nil {
		return nil, esyntax(path, err)
	}

	/* scan every field */
	for {
		_, tt, id, err := dec.ReadFieldBegin()
		if err != nil {
			return nil, esyntax(path, err)
		}

		/* end of struct */
		if tt == thrift.STOP {
			break
		}

		/* check for field ID */
		switch {
		case id == _F_kind && tt == thrift.I32:
			ret.kind, err = dec.ReadI32()
		case id == _F_bits && tt == thrift.I32:
			ret.bits, err = dec.ReadI32()
		case id == _F_tname && tt == thrift.STRING:
			ret.name, err = dec.ReadString()
		case id == _F_thick && tt == thrift.BOOL:
			ret.thick, err = dec.ReadBool()
		case id == _F_elem && tt == thrift.STRUCT:
			ret.elem, err = decodeType(dec, path, depth+1)
		case id == _F_elems && tt == thrift.LIST:
			ret.elems, err = decodeTypes(dec, path, depth+1)
		case id == _F_params && tt == thrift.LIST:
			ret.params, err = decodeTypes(dec, path, depth+1)
		case id == _F_names && tt == thrift.LIST:
			err = decodeList(dec, path, thrift.STRING, func() (e error) {
				var s string
				s, e = dec.ReadString()
				ret.names = append(ret.names, s)
				return
			})
		case id == _F_flags && tt == thrift.LIST:
			err = decodeList(dec, path, thrift.BOOL, func() (e error) {
				var v bool
				v, e = dec.ReadBool()
				ret.flags = append(ret.flags, v)
				return
			})
		default:
			err = dec.Skip(tt)
		}

		/* check for errors */
		if err != nil {
			return nil, epropagate(path, err)
		}
		if err = dec.ReadFieldEnd(); err != nil {
			return nil, esyntax(path, err)
		}
	}

	/* end of TypeRef */
	if err := dec.ReadStructEnd(); err != nil {
		return nil, esyntax(path, err)
	}
	return ret.build(path)
}

func decodeList(dec *thrift.TBinaryProtocol, path string, et thrift.TType, fn func() error) error {
	tt, nb, err := dec.ReadListBegin()
	if err != nil {
		return esyntax(path, err)
	}
	if tt != et {
		return ereason(path, "unexpected list element type")
	}
	for i := 0; i < nb; i++ {
		if err = fn(); err != nil {
			return epropagate(path, err)
		}
	}
	if err = dec.ReadListEnd(); err != nil {
		return esyntax(path, err)
	}
	return nil
}

func decodeTypes(dec *thrift.TBinaryProtocol, path string, depth int) ([]*ir.Type, error) {
	var ret []*ir.Type
	err := decodeList(dec, path, thrift.STRUCT, func() error {
		t, err := decodeType(dec, path, depth)
		ret = append(ret, t)
		return err
	})
	return ret, err
}

// build checks the descriptor and interns the type it describes.
func (self *_TypeRef) build(path string) (*ir.Type, error) {
	switch ir.Kind(self.kind) {
	case ir.KInt:
		if self.bits <= 0 {
			return nil, ereason(path, fmt.Sprintf("invalid integer width %d", self.bits))
		}
		return ir.Int(int(self.bits)), nil
	case ir.KRawPointer:
		return ir.RawPointer(), nil
	case ir.KAddress:
		if self.elem == nil || self.elem.IsAddress() {
			return nil, ereason(path, "invalid address element type")
		}
		return ir.AddressOf(self.elem), nil
	case ir.KParam:
		if self.name == "" {
			return nil, ereason(path, "generic parameter without a name")
		}
		return ir.ParamOf(self.name), nil
	case ir.KExistential:
		return ir.ExistentialOf(self.name), nil
	case ir.KClass:
		if self.elem != nil && !self.elem.IsClass() {
			return nil, ereason(path, "superclass is not a class type")
		}
		return ir.ClassOf(self.name, self.elem), nil
	case ir.KTuple:
		return ir.TupleOf(self.elems...), nil
	case ir.KStruct:
		return self.buildStruct(path)
	case ir.KEnum:
		return self.buildEnum(path)
	case ir.KFunc:
		return self.buildFunc(path)
	default:
		return nil, ereason(path, fmt.Sprintf("invalid type kind %d", self.kind))
	}
}

func (self *_TypeRef) buildStruct(path string) (*ir.Type, error) {
	if len(self.names) != len(self.elems) {
		return nil, ereason(path, "struct field names and types do not match")
	}
	fields := make([]ir.Field, len(self.names))
	for i, name := range self.names {
		fields[i] = ir.Field{Name: name, Type: self.elems[i]}
	}
	return ir.StructOf(self.name, fields...), nil
}

func (self *_TypeRef) buildEnum(path string) (*ir.Type, error) {
	if len(self.names) != len(self.flags) {
		return nil, ereason(path, "enum case names and flags do not match")
	}

	/* payloads are listed for the cases that have one */
	k := 0
	cases := make([]ir.Case, len(self.names))
	for i, name := range self.names {
		cases[i].Name = name
		if self.flags[i] {
			if k >= len(self.elems) {
				return nil, ereason(path, "missing enum payload")
			}
			cases[i].Payload = self.elems[k]
			k++
		}
	}

	/* every payload must be used */
	if k != len(self.elems) {
		return nil, ereason(path, "too many enum payloads")
	}
	return ir.EnumOf(self.name, cases...), nil
}

func (self *_TypeRef) buildFunc(path string) (*ir.Type, error) {
	if len(self.params) != len(self.flags) {
		return nil, ereason(path, "function parameter types and flags do not match")
	}
	params := make([]ir.Param, len(self.params))
	for i, t := range self.params {
		params[i] = ir.Param{Type: t, Owned: self.flags[i]}
	}
	return ir.FuncOf(params, self.elems, self.thick), nil
}
