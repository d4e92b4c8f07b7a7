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

// CheckUseLists reports the first mismatch between operand slots and use lists.
func (self *Function) CheckUseLists() error {
	n := 0

	/* every operand slot must be mirrored by a use edge */
	for _, p := range self.instrs {
		if p == nil {
			continue
		}
		n++
		for i, op := range p.ops {
			if !self.IsLive(op.v) {
				return fmt.Errorf("operand %d of %s references a released value", i, p)
			}
			if uses := self.values[op.v].uses; op.pos >= len(uses) || uses[op.pos] != (Use{User: p.ID, Slot: i}) {
				return fmt.Errorf("operand %d of %s has no matching use edge", i, p)
			}
		}
	}

	/* live instruction count */
	if n != self.live {
		return fmt.Errorf("live instruction count is %d, found %d", self.live, n)
	}

	/* every use edge must point at a live operand slot */
	for id := range self.values {
		v := &self.values[id]
		if v.kind == VDead {
			continue
		}
		for _, u := range v.uses {
			if p := self.Instr(u.User); p == nil {
				return fmt.Errorf("value %s is used by erased instruction %s", ValueID(id), u.User)
			} else if u.Slot >= len(p.ops) || p.ops[u.Slot].v != ValueID(id) {
				return fmt.Errorf("value %s has a stale use in %s", ValueID(id), p)
			}
		}
	}
	return nil
}
