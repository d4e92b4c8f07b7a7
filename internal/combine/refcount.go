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

// isUncounted checks if reference counting operations on v are no-ops.
func isUncounted(fn *ir.Function, v ir.ValueID) bool {
	if fn.TypeOf(v).IsTrivial() {
		return true
	}

	/* thick functions without a context */
	switch q := fn.DefOf(v); {
	case q == nil:
		return false
	case q.Op == ir.OpThinToThickFunction:
		return true
	default:
		return false
	}
}

// release x; retain y; ...; retain x => retain y; ...
func (self *Combiner) visitRetain(p *ir.Instr) _Edit {
	fn := self.fn
	x := p.Operand(0)

	/* nothing to count */
	if isUncounted(fn, x) {
		self.erase(p, "retain.uncounted")
		return erased
	}

	/* skip over other retains */
	q := fn.Prev(p)
	for q != nil && q.Op == ir.OpRetain {
		q = fn.Prev(q)
	}

	/* must be a release of the same value */
	if q == nil || q.Op != ir.OpRelease || q.Operand(0) != x {
		return noChange
	}

	/* cancel them out */
	self.erase(q, "retain.pair")
	self.erase(p, "")
	return erased
}

// retain x; retain y; ...; release x => retain y; ...
func (self *Combiner) visitRelease(p *ir.Instr) _Edit {
	fn := self.fn
	x := p.Operand(0)

	/* nothing to count */
	if isUncounted(fn, x) {
		self.erase(p, "release.uncounted")
		return erased
	}

	/* find the nearest retain of the same value, only retains in between */
	q := fn.Prev(p)
	for q != nil && q.Op == ir.OpRetain && q.Operand(0) != x {
		q = fn.Prev(q)
	}

	/* must be a retain of the same value */
	if q == nil || q.Op != ir.OpRetain || q.Operand(0) != x {
		return noChange
	}

	/* cancel them out */
	self.erase(q, "release.pair")
	self.erase(p, "")
	return erased
}
