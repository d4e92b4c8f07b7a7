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

// strideOperand returns n if v computes n * strideof(T), in either order.
func strideOperand(fn *ir.Function, v ir.ValueID, elem *ir.Type) (ir.ValueID, bool) {
	q := defOp(fn, v, ir.OpBuiltinArith)
	if q == nil || q.Arith != ir.ArithMul {
		return ir.NoValue, false
	}

	/* one of the factors must be the stride of the element */
	for i := 0; i < 2; i++ {
		if s := defOp(fn, q.Operand(i), ir.OpStrideOf); s != nil && s.Type == elem {
			return q.Operand(1 - i), true
		}
	}
	return ir.NoValue, false
}

// pointer_to_address(index_raw_pointer(p, n * strideof(T))) : *T
//   => index_addr(pointer_to_address(p) : *T, n)
func (self *Combiner) reduceIndexRawPointer(p *ir.Instr) _Edit {
	fn := self.fn
	elem := p.Type.Elem

	/* the element type must be fully known */
	if elem == nil || elem.IsGeneric() {
		return noChange
	}

	/* must be an indexed raw pointer */
	q := defOp(fn, p.Operand(0), ir.OpIndexRawPointer)
	if q == nil {
		return noChange
	}

	/* the offset must be a multiple of the element stride */
	n, ok := strideOperand(fn, q.Operand(1), elem)
	if !ok {
		return noChange
	}

	/* build the typed address computation */
	b := self.at(p)
	base := b.PointerToAddress(q.Operand(0), p.Type)
	return replacedBy("addr.index_raw_pointer", b.IndexAddr(base.Result(), n))
}
