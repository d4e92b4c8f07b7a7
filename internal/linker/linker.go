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
	"sync"

	"github.com/cloudwego/peephole/ir"
)

// Linker resolves functions by name, possibly loading external declarations on demand.
type Linker interface {
	Lookup(name string) (*ir.Function, bool)
	EffectsOf(fn *ir.Function) ir.Effects
}

// ModuleLinker resolves names against a module first, then against a serialized library
// of external function summaries which is decoded the first time it is needed.
type ModuleLinker struct {
	mod  *ir.Module
	lib  []byte
	once sync.Once
	sums map[string]Summary
	err  error
}

func New(mod *ir.Module, library []byte) *ModuleLinker {
	return &ModuleLinker{
		mod: mod,
		lib: library,
	}
}

func (self *ModuleLinker) load() {
	self.once.Do(func() {
		var sv []Summary
		self.sums = make(map[string]Summary)

		/* nothing to load */
		if len(self.lib) == 0 {
			return
		}

		/* decode the library */
		if sv, self.err = DecodeLibrary(self.lib); self.err != nil {
			return
		}

		/* index by name */
		for _, s := range sv {
			self.sums[s.Name] = s
		}
	})
}

// Err returns the library decoding error, if any.
func (self *ModuleLinker) Err() error {
	self.load()
	return self.err
}

func (self *ModuleLinker) Lookup(name string) (*ir.Function, bool) {
	if fn, ok := self.mod.Lookup(name); ok {
		return fn, true
	}

	/* try the external library */
	self.load()
	sum, ok := self.sums[name]
	if !ok {
		return nil, false
	}

	/* materialize the declaration, another goroutine may have won the race */
	fn, _ := self.mod.LoadOrAdd(ir.NewDeclaration(name, sum.Type, sum.Effects))
	return fn, true
}

func (self *ModuleLinker) EffectsOf(fn *ir.Function) ir.Effects {
	return fn.Effects
}
