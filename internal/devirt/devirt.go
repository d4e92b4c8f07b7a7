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

// Package devirt rewrites virtual method lookups on objects of a statically known class
// into direct function references.
package devirt

import (
	"github.com/cloudwego/peephole/ir"
	"github.com/oleiade/lane"
)

// Devirtualize replaces every class_method whose receiver has an exact known class with a
// function_ref to the implementation found in the module's vtables. It reports whether
// anything was changed.
func Devirtualize(fn *ir.Function, mod *ir.Module) bool {
	var ok bool
	var ins []*ir.Instr

	/* nothing to do for declarations */
	if fn.External || fn.Entry() == nil {
		return false
	}

	/* Phase 1: collect candidates from reachable blocks in breadth-first order */
	q := lane.NewQueue()
	vis := make(map[ir.BlockID]bool)
	for q.Enqueue(fn.Entry()); !q.Empty(); {
		bb := q.Dequeue().(*ir.Block)
		if vis[bb.ID] {
			continue
		}
		vis[bb.ID] = true
		for _, p := range fn.Instrs(bb) {
			if p.Op == ir.OpClassMethod {
				ins = append(ins, p)
			}
		}
		for _, succ := range fn.Successors(bb) {
			q.Enqueue(succ)
		}
	}

	/* Phase 2: rewrite the resolvable ones */
	b := ir.NewBuilder(fn)
	for _, p := range ins {
		if rewrite(b, mod, p) {
			ok = true
		}
	}

	/* instructions created here are not tracked by anyone */
	b.Drain()
	return ok
}

// ExactClass returns the dynamic class of v when it is statically known, looking through
// upcasts and reference casts back to the allocation.
func ExactClass(fn *ir.Function, v ir.ValueID) *ir.Type {
	for {
		p := fn.DefOf(v)
		if p == nil {
			return nil
		}
		switch p.Op {
		case ir.OpAllocRef:
			return p.Type
		case ir.OpUpcast, ir.OpUncheckedRefCast:
			v = p.Operand(0)
		default:
			return nil
		}
	}
}

func rewrite(b *ir.Builder, mod *ir.Module, p *ir.Instr) bool {
	fn := b.Func()
	cls := ExactClass(fn, p.Operand(0))

	/* receiver class must be known, and the method must be a thin function */
	if cls == nil || p.Type == nil || p.Type.Kind != ir.KFunc || p.Type.Thick {
		return false
	}

	/* find the implementation */
	name, ok := mod.ResolveMethod(cls, p.Name)
	if !ok {
		return false
	}

	/* the implementation must have the exact signature of the lookup */
	impl, ok := mod.Lookup(name)
	if !ok || impl.Type != p.Type {
		return false
	}

	/* replace the lookup with a direct reference */
	b.SetInsertionPoint(p)
	ref := b.FunctionRef(name, p.Type)
	fn.ReplaceAllUsesWith(p.Result(), ref.Result())
	fn.Erase(p)
	return true
}
