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

// A load of an aggregate that is only ever projected becomes one narrower load per field:
//
//   %v = load %a; %x = struct_extract %v, #k
//     => %e = struct_element_addr %a, #k; %x = load %e
func (self *Combiner) visitLoad(p *ir.Instr) _Edit {
	var ext ir.Op
	var proj func(ir.ValueID, int) *ir.Instr

	/* select the projection kind by the loaded type */
	fn := self.fn
	switch fn.TypeOf(p.Result()).Kind {
	case ir.KStruct:
		ext, proj = ir.OpStructExtract, self.b.StructElementAddr
	case ir.KTuple:
		ext, proj = ir.OpTupleExtract, self.b.TupleElementAddr
	default:
		return noChange
	}

	/* every user must be a projection */
	users := fn.Users(p.Result())
	for _, u := range users {
		if u.Op != ext {
			return noChange
		}
	}

	/* one address projection and load per distinct field */
	self.at(p)
	addr := p.Operand(0)
	fields := make(map[int]ir.ValueID, len(users))
	for _, u := range users {
		if _, ok := fields[u.Index]; !ok {
			fields[u.Index] = self.b.Load(proj(addr, u.Index).Result()).Result()
		}
	}

	/* replace the projections */
	for _, u := range users {
		self.replaceValue(u.Result(), fields[u.Index])
		self.erase(u, "")
	}

	/* the aggregate load is dead now */
	self.erase(p, "load.aggregate")
	return erased
}
