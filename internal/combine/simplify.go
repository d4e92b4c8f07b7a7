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

// Simplify returns an existing value that p's single result is provably equal to. It never
// modifies the function, and reports false when no identity applies.
func Simplify(fn *ir.Function, p *ir.Instr) (ir.ValueID, bool) {
	switch p.Op {
	case ir.OpStructExtract:
		return simplifyExtract(fn, p, ir.OpStruct)
	case ir.OpTupleExtract:
		return simplifyTupleExtract(fn, p)
	case ir.OpStruct:
		return simplifyConstruct(fn, p, ir.OpStructExtract)
	case ir.OpTuple:
		return simplifyConstruct(fn, p, ir.OpTupleExtract)
	case ir.OpUncheckedEnumData:
		return simplifyEnumData(fn, p)
	case ir.OpPointerToAddress:
		return simplifyRoundTrip(fn, p, ir.OpAddressToPointer)
	case ir.OpAddressToPointer:
		return simplifyRoundTrip(fn, p, ir.OpPointerToAddress)
	case ir.OpRawPointerToRef:
		return simplifyRoundTrip(fn, p, ir.OpRefToRawPointer)
	case ir.OpRefToRawPointer:
		return simplifyRoundTrip(fn, p, ir.OpRawPointerToRef)
	case ir.OpUncheckedBitwiseCast, ir.OpUncheckedAddrCast:
		return simplifyCast(fn, p, p.Op)
	case ir.OpUncheckedRefCast, ir.OpUpcast:
		return simplifyCast(fn, p, ir.OpUncheckedRefCast, ir.OpUpcast)
	case ir.OpBuiltinArith:
		return simplifyArith(fn, p.Arith, p.Operand(0), p.Operand(1))
	case ir.OpIndexAddr, ir.OpIndexRawPointer:
		return simplifyIndex(fn, p)
	default:
		return ir.NoValue, false
	}
}

// literal returns the value of an integer literal.
func literal(fn *ir.Function, v ir.ValueID) (int64, bool) {
	if p := fn.DefOf(v); p == nil || p.Op != ir.OpIntegerLiteral {
		return 0, false
	} else {
		return p.Int, true
	}
}

// isLiteral checks if v is the integer literal x.
func isLiteral(fn *ir.Function, v ir.ValueID, x int64) bool {
	n, ok := literal(fn, v)
	return ok && n == x
}

// defOp returns the definition of v if it's an instruction of one of the given ops.
func defOp(fn *ir.Function, v ir.ValueID, ops ...ir.Op) *ir.Instr {
	if p := fn.DefOf(v); p != nil {
		for _, op := range ops {
			if p.Op == op {
				return p
			}
		}
	}
	return nil
}

// extract(construct(a0, ..., an), k) => ak
func simplifyExtract(fn *ir.Function, p *ir.Instr, cons ir.Op) (ir.ValueID, bool) {
	if q := defOp(fn, p.Operand(0), cons); q != nil {
		return q.Operand(p.Index), true
	} else {
		return ir.NoValue, false
	}
}

func simplifyTupleExtract(fn *ir.Function, p *ir.Instr) (ir.ValueID, bool) {
	if v, ok := simplifyExtract(fn, p, ir.OpTuple); ok {
		return v, true
	}

	/* only the value component of checked arithmetics has identities */
	if q := defOp(fn, p.Operand(0), ir.OpBuiltinChecked); q != nil && p.Index == 0 {
		return simplifyArith(fn, q.Arith, q.Operand(0), q.Operand(1))
	} else {
		return ir.NoValue, false
	}
}

// construct(extract(s, 0), ..., extract(s, n)) => s
func simplifyConstruct(fn *ir.Function, p *ir.Instr, ext ir.Op) (ir.ValueID, bool) {
	var src ir.ValueID
	typ := fn.TypeOf(p.Result())

	/* empty aggregates can't be traced back to anything */
	if p.NumOperands() == 0 {
		return ir.NoValue, false
	}

	/* every field must be extracted from the same aggregate, in order */
	for i, v := range p.Operands() {
		q := defOp(fn, v, ext)
		if q == nil || q.Index != i {
			return ir.NoValue, false
		}
		if i == 0 {
			src = q.Operand(0)
		} else if q.Operand(0) != src {
			return ir.NoValue, false
		}
	}

	/* the source must have the same type */
	if fn.TypeOf(src) != typ {
		return ir.NoValue, false
	} else {
		return src, true
	}
}

// unchecked_enum_data(enum(#c, x), #c) => x
func simplifyEnumData(fn *ir.Function, p *ir.Instr) (ir.ValueID, bool) {
	if q := defOp(fn, p.Operand(0), ir.OpEnum); q != nil && q.Index == p.Index && q.NumOperands() == 1 {
		return q.Operand(0), true
	} else {
		return ir.NoValue, false
	}
}

// cast(inverse(x)) => x, when the types agree
func simplifyRoundTrip(fn *ir.Function, p *ir.Instr, inverse ir.Op) (ir.ValueID, bool) {
	if q := defOp(fn, p.Operand(0), inverse); q != nil && fn.TypeOf(q.Operand(0)) == fn.TypeOf(p.Result()) {
		return q.Operand(0), true
	} else {
		return ir.NoValue, false
	}
}

// cast(x) : T => x when x : T, and cast(cast(x)) : T => x when x : T
func simplifyCast(fn *ir.Function, p *ir.Instr, family ...ir.Op) (ir.ValueID, bool) {
	x := p.Operand(0)
	t := fn.TypeOf(p.Result())

	/* same-type casts */
	if fn.TypeOf(x) == t {
		return x, true
	}

	/* round trips within the same family */
	if q := defOp(fn, x, family...); q != nil && fn.TypeOf(q.Operand(0)) == t {
		return q.Operand(0), true
	} else {
		return ir.NoValue, false
	}
}

// identity and absorbing elements of integer arithmetics
func simplifyArith(fn *ir.Function, op ir.ArithOp, x ir.ValueID, y ir.ValueID) (ir.ValueID, bool) {
	switch op {
	case ir.ArithAdd:
		if isLiteral(fn, y, 0) {
			return x, true
		} else if isLiteral(fn, x, 0) {
			return y, true
		}
	case ir.ArithSub:
		if isLiteral(fn, y, 0) {
			return x, true
		}
	case ir.ArithMul:
		if isLiteral(fn, y, 1) || isLiteral(fn, x, 0) {
			return x, true
		} else if isLiteral(fn, x, 1) || isLiteral(fn, y, 0) {
			return y, true
		}
	}
	return ir.NoValue, false
}

// index(base, 0) => base
func simplifyIndex(fn *ir.Function, p *ir.Instr) (ir.ValueID, bool) {
	if isLiteral(fn, p.Operand(1), 0) {
		return p.Operand(0), true
	} else {
		return ir.NoValue, false
	}
}
