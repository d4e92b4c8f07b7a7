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
	"sync"
)

// VTable maps method names to implementing function names for one class.
type VTable map[string]string

// Module owns a set of functions and the class tables used for devirtualization.
// Functions may be added concurrently; everything else is read-only during optimization.
type Module struct {
	mu      sync.RWMutex
	funcs   map[string]*Function
	order   []string
	VTables map[*Type]VTable
}

func NewModule() *Module {
	return &Module{
		funcs:   make(map[string]*Function),
		VTables: make(map[*Type]VTable),
	}
}

// Add registers fn, replacing any previous function of the same name.
func (self *Module) Add(fn *Function) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if _, ok := self.funcs[fn.Name]; !ok {
		self.order = append(self.order, fn.Name)
	}
	self.funcs[fn.Name] = fn
}

// LoadOrAdd returns the function already registered under fn.Name, or registers fn.
func (self *Module) LoadOrAdd(fn *Function) (*Function, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if old, ok := self.funcs[fn.Name]; ok {
		return old, true
	}
	self.funcs[fn.Name] = fn
	self.order = append(self.order, fn.Name)
	return fn, false
}

func (self *Module) Lookup(name string) (*Function, bool) {
	self.mu.RLock()
	fn, ok := self.funcs[name]
	self.mu.RUnlock()
	return fn, ok
}

// Functions returns the functions in insertion order.
func (self *Module) Functions() []*Function {
	self.mu.RLock()
	defer self.mu.RUnlock()
	ret := make([]*Function, 0, len(self.order))
	for _, name := range self.order {
		ret = append(ret, self.funcs[name])
	}
	return ret
}

// ResolveMethod finds the implementation of method for class, walking up superclasses.
func (self *Module) ResolveMethod(class *Type, method string) (string, bool) {
	for t := class; t != nil; t = t.Super {
		if fn, ok := self.VTables[t][method]; ok {
			return fn, true
		}
	}
	return "", false
}
