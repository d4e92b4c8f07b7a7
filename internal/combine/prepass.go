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
	"github.com/oleiade/lane"
)

// collectReachable walks the blocks reachable from the entry in depth-first order. Trivially
// dead instructions are erased on the way, and the survivors are returned in visiting order.
// Definitions dominate their uses, so an instruction made dead here is always among the
// survivors already collected.
func (self *Combiner) collectReachable() []ir.InstrID {
	var ret []ir.InstrID
	fn := self.fn
	vis := make(map[ir.BlockID]bool)

	/* nothing to walk */
	if fn.Entry() == nil {
		return nil
	}

	/* depth-first walk, successors pushed in reverse so the first edge is visited first */
	st := lane.NewStack()
	for st.Push(fn.Entry()); !st.Empty(); {
		bb := st.Pop().(*ir.Block)
		if vis[bb.ID] {
			continue
		}

		/* scan the block */
		vis[bb.ID] = true
		for p := fn.First(bb); p != nil; {
			q := fn.Next(p)
			if !p.IsTerminator() && fn.IsTriviallyDead(p) {
				self.changed = true
				self.kill(p, "prepass")
			} else {
				ret = append(ret, p.ID)
			}
			p = q
		}

		/* schedule the successors */
		succ := fn.Successors(bb)
		for i := len(succ) - 1; i >= 0; i-- {
			if !vis[succ[i].ID] {
				st.Push(succ[i])
			}
		}
	}
	return ret
}
