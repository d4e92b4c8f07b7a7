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
	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cloudwego/peephole/ir"
)

// Summary describes an external function without its body. Type is the signature, and
// may be nil when it is unknown.
type Summary struct {
	Name    string
	Effects ir.Effects
	Type    *ir.Type
}

/* Thrift field IDs of the library encoding:
 *
 *   struct Summary { 1: required string name, 2: i32 effects, 3: TypeRef signature }
 *   struct Library { 1: list<Summary> functions }
 */
const (
	_F_name      = 1
	_F_effects   = 2
	_F_signature = 3
	_F_functions = 1
)

// EncodeLibrary serializes summaries with the Thrift binary protocol.
func EncodeLibrary(sums []Summary) ([]byte, error) {
	buf := thrift.NewTMemoryBuffer()
	enc := thrift.NewTBinaryProtocolTransport(buf)

	/* Library header */
	if err := enc.WriteStructBegin("Library"); err != nil {
		return nil, err
	}
	if err := enc.WriteFieldBegin("functions", thrift.LIST, _F_functions); err != nil {
		return nil, err
	}
	if err := enc.WriteListBegin(thrift.STRUCT, len(sums)); err != nil {
		return nil, err
	}

	/* every function summary */
	for _, s := range sums {
		if err := encodeSummary(enc, s); err != nil {
			return nil, err
		}
	}

	/* Library trailer */
	if err := enc.WriteListEnd(); err != nil {
		return nil, err
	}
	if err := enc.WriteFieldEnd(); err != nil {
		return nil, err
	}
	if err := enc.WriteFieldStop(); err != nil {
		return nil, err
	}
	if err := enc.WriteStructEnd(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeSummary(enc *thrift.TBinaryProtocol, s Summary) error {
	if err := enc.WriteStructBegin("Summary"); err != nil {
		return err
	}

	/* field 1: name */
	if err := enc.WriteFieldBegin("name", thrift.STRING, _F_name); err != nil {
		return err
	}
	if err := enc.WriteString(s.Name); err != nil {
		return err
	}
	if err := enc.WriteFieldEnd(); err != nil {
		return err
	}

	/* field 2: effects */
	if err := enc.WriteFieldBegin("effects", thrift.I32, _F_effects); err != nil {
		return err
	}
	if err := enc.WriteI32(int32(s.Effects)); err != nil {
		return err
	}
	if err := enc.WriteFieldEnd(); err != nil {
		return err
	}

	/* field 3: signature, optional */
	if s.Type != nil {
		if s.Type.Kind != ir.KFunc {
			return ereason("Summary."+s.Name+".signature", "not a function type: "+s.Type.String())
		}
		if err := enc.WriteFieldBegin("signature", thrift.STRUCT, _F_signature); err != nil {
			return err
		}
		if err := encodeType(enc, s.Type); err != nil {
			return err
		}
		if err := enc.WriteFieldEnd(); err != nil {
			return err
		}
	}

	/* end of struct */
	if err := enc.WriteFieldStop(); err != nil {
		return err
	}
	return enc.WriteStructEnd()
}

// DecodeLibrary parses a library produced by EncodeLibrary. Unknown fields are skipped.
func DecodeLibrary(data []byte) ([]Summary, error) {
	var ret []Summary
	buf := thrift.NewTMemoryBufferLen(len(data))
	dec := thrift.NewTBinaryProtocolTransport(buf)

	/* load the data */
	if _, err := buf.Write(data); err != nil {
		return nil, err
	}

	/* Library header */
	if _, err := dec.ReadStructBegin(); err != nil {
		return nil, esyntax("Library", err)
	}

	/* scan every field */
	for {
		_, tt, id, err := dec.ReadFieldBegin()
		if err != nil {
			return nil, esyntax("Library", err)
		}

		/* end of struct */
		if tt == thrift.STOP {
			break
		}

		/* unknown fields */
		if id != _F_functions || tt != thrift.LIST {
			if err = dec.Skip(tt); err != nil {
				return nil, esyntax("Library", err)
			}
			if err = dec.ReadFieldEnd(); err != nil {
				return nil, esyntax("Library", err)
			}
			continue
		}

		/* function list */
		et, nb, err := dec.ReadListBegin()
		if err != nil {
			return nil, esyntax("Library.functions", err)
		}
		if et != thrift.STRUCT {
			return nil, ereason("Library.functions", "element type is not a struct")
		}

		/* decode every summary */
		for i := 0; i < nb; i++ {
			s, err := decodeSummary(dec)
			if err != nil {
				return nil, err
			}
			ret = append(ret, s)
		}

		/* end of list */
		if err = dec.ReadListEnd(); err != nil {
			return nil, esyntax("Library.functions", err)
		}
		if err = dec.ReadFieldEnd(); err != nil {
			return nil, esyntax("Library", err)
		}
	}

	/* end of Library */
	if err := dec.ReadStructEnd(); err != nil {
		return nil, esyntax("Library", err)
	}
	return ret, nil
}

func decodeSummary(dec *thrift.TBinaryProtocol) (Summary, error) {
	var ret Summary
	var name bool

	/* Summary header */
	if _, err := dec.ReadStructBegin(); err != nil {
		return ret, esyntax("Summary", err)
	}

	/* scan every field */
	for {
		_, tt, id, err := dec.ReadFieldBegin()
		if err != nil {
			return ret, esyntax("Summary", err)
		}

		/* end of struct */
		if tt == thrift.STOP {
			break
		}

		/* check for field ID */
		switch {
		case id == _F_name && tt == thrift.STRING:
			name = true
			ret.Name, err = dec.ReadString()
		case id == _F_effects && tt == thrift.I32:
			var v int32
			v, err = dec.ReadI32()
			ret.Effects = ir.Effects(v)
		case id == _F_signature && tt == thrift.STRUCT:
			ret.Type, err = decodeType(dec, "Summary.signature", 0)
		default:
			err = dec.Skip(tt)
		}

		/* check for errors */
		if err != nil {
			return ret, epropagate("Summary", err)
		}
		if err = dec.ReadFieldEnd(); err != nil {
			return ret, esyntax("Summary", err)
		}
	}

	/* the name is required */
	if !name {
		return ret, ereason("Summary", "missing required field 'name'")
	}

	/* effects must be a known kind */
	if ret.Effects > ir.EffectsReadWrite {
		return ret, ereason("Summary."+ret.Name, "invalid effects value")
	}

	/* the signature must be a function type */
	if ret.Type != nil && ret.Type.Kind != ir.KFunc {
		return ret, ereason("Summary."+ret.Name+".signature", "not a function type")
	}

	/* end of Summary */
	if err := dec.ReadStructEnd(); err != nil {
		return ret, esyntax("Summary", err)
	}
	return ret, nil
}
