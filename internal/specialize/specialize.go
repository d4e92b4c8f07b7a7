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

// Package specialize creates monomorphic copies of generic functions.
package specialize

import (
	"sync/atomic"

	"github.com/bytedance/gopkg/collection/skipmap"
	"github.com/cloudwego/peephole/ir"
)

var (
	HitCount   uint64
	MissCount  uint64
	CloneCount uint64
)

// Specializer returns the specialization of a generic function for one substitution.
type Specializer interface {
	GetOrCreate(generic *ir.Function, subst ir.SubstMap) *ir.Function
}

// Cache is a module-wide memo of specializations keyed by mangled name. It is safe for
// concurrent use, and at most one clone is ever created per mangled name.
type Cache struct {
	mod *ir.Module
	tab *skipmap.StringMap
}

func New(mod *ir.Module) *Cache {
	return &Cache{
		mod: mod,
		tab: skipmap.NewString(),
	}
}

// Mangle returns the canonical name of generic specialized with subst.
func Mangle(generic *ir.Function, subst ir.SubstMap) string {
	return generic.Name + "<" + subst.Key() + ">"
}

// GetOrCreate returns the specialization of generic for subst, cloning it on first request.
// Declarations are specialized by signature only.
func (self *Cache) GetOrCreate(generic *ir.Function, subst ir.SubstMap) *ir.Function {
	if len(subst) == 0 {
		return generic
	}

	/* atomic get-or-create */
	name := Mangle(generic, subst)
	fn, ok := self.tab.LoadOrStoreLazy(name, func() interface{} {
		return self.create(generic, name, subst)
	})

	/* update the counters */
	if ok {
		atomic.AddUint64(&HitCount, 1)
	} else {
		atomic.AddUint64(&MissCount, 1)
	}
	return fn.(*ir.Function)
}

func (self *Cache) create(generic *ir.Function, name string, subst ir.SubstMap) *ir.Function {
	var fn *ir.Function

	/* external functions have no body to clone */
	if generic.External {
		fn = ir.NewDeclaration(name, nil, generic.Effects)
		if generic.Type != nil {
			fn.Type = generic.Type.Subst(subst)
		}
	} else {
		fn = ir.Clone(generic, name, subst)
	}

	/* register in the module */
	atomic.AddUint64(&CloneCount, 1)
	fn, _ = self.mod.LoadOrAdd(fn)
	return fn
}

// Len returns the number of specializations created so far.
func (self *Cache) Len() int {
	return self.tab.Len()
}
