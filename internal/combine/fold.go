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
	"github.com/holiman/uint256"
)

// signed returns the two's complement representation of x in 256 bits.
func signed(x int64) *uint256.Int {
	if x >= 0 {
		return uint256.NewInt(uint64(x))
	} else {
		v := uint256.NewInt(uint64(-x))
		return v.Neg(v)
	}
}

// wrap sign-extends the low bits of r, which is how an integer of that width sees it.
func wrap(r *uint256.Int, bits int) *uint256.Int {
	if bits >= 256 {
		return r.Clone()
	}

	/* keep the low bits */
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
	mask.SubUint64(mask, 1)
	w := new(uint256.Int).And(r, mask)

	/* negative values fill the high bits with ones */
	if !new(uint256.Int).Rsh(w, uint(bits-1)).IsZero() {
		w.Or(w, new(uint256.Int).Not(mask))
	}
	return w
}

// evaluate computes op(x, y) wrapped to the width, and whether it overflowed. The value
// is only meaningful when fits is true, since literals hold at most 64 bits.
func evaluate(op ir.ArithOp, bits int, x int64, y int64) (v int64, ovf bool, fits bool) {
	r := new(uint256.Int)
	a, b := signed(x), signed(y)

	/* exact result, operands are at most 64 bits so nothing is lost */
	switch op {
	case ir.ArithAdd:
		r.Add(a, b)
	case ir.ArithSub:
		r.Sub(a, b)
	case ir.ArithMul:
		r.Mul(a, b)
	default:
		panic("unreachable")
	}

	/* wrap to the integer width */
	w := wrap(r, bits)
	v = int64(w.Uint64())
	return v, !w.Eq(r), signed(v).Eq(w)
}

// literals returns the values of two integer literals.
func literals(fn *ir.Function, x ir.ValueID, y ir.ValueID) (int64, int64, bool) {
	a, ok1 := literal(fn, x)
	b, ok2 := literal(fn, y)
	return a, b, ok1 && ok2
}

// builtin op(lit, lit) => lit
func (self *Combiner) visitBuiltinArith(p *ir.Instr) _Edit {
	t := self.fn.TypeOf(p.Result())

	/* both operands must be known */
	x, y, ok := literals(self.fn, p.Operand(0), p.Operand(1))
	if !ok || t.Kind != ir.KInt {
		return noChange
	}

	/* fold the operation, unless the literal can't hold the result */
	if v, _, fits := evaluate(p.Arith, t.Bits, x, y); !fits {
		return noChange
	} else {
		return replacedBy("fold.arith", self.at(p).IntegerLiteral(t, v))
	}
}

// tuple_extract(builtin_checked op(lit, lit), #k) => lit
// tuple_extract(builtin_checked op(x, identity), #1) => 0
func (self *Combiner) visitTupleExtract(p *ir.Instr) _Edit {
	fn := self.fn
	q := defOp(fn, p.Operand(0), ir.OpBuiltinChecked)

	/* must be a checked arithmetic */
	if q == nil {
		return noChange
	}

	/* the value type */
	t := fn.TypeOf(q.Operand(0))
	if t.Kind != ir.KInt {
		return noChange
	}

	/* both operands are known */
	if x, y, ok := literals(fn, q.Operand(0), q.Operand(1)); ok {
		v, ovf, fits := evaluate(q.Arith, t.Bits, x, y)
		if p.Index == 0 && !fits {
			return noChange
		} else if p.Index == 0 {
			return replacedBy("fold.checked", self.at(p).IntegerLiteral(t, v))
		} else if ovf {
			return replacedBy("fold.checked", self.at(p).IntegerLiteral(ir.Int1, 1))
		} else {
			return replacedBy("fold.checked", self.at(p).IntegerLiteral(ir.Int1, 0))
		}
	}

	/* identities never overflow */
	if _, ok := simplifyArith(fn, q.Arith, q.Operand(0), q.Operand(1)); ok && p.Index == 1 {
		return replacedBy("fold.no_overflow", self.at(p).IntegerLiteral(ir.Int1, 0))
	} else {
		return noChange
	}
}
