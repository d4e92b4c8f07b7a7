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
	"github.com/cloudwego/peephole/ir"
	"github.com/oleiade/lane"
)

// InferEffects fills in the effects of every defined function whose effects are unknown.
// It must run before functions are optimized concurrently, since it reads their bodies.
func InferEffects(mod *ir.Module) {
	for _, fn := range mod.Functions() {
		if !fn.External && fn.Effects == ir.EffectsUnknown {
			fn.Effects = bodyEffects(fn)
		}
	}
}

// bodyEffects assumes the worst for bodies that may never return, since removing a call to
// them would change what the program does.
func bodyEffects(fn *ir.Function) ir.Effects {
	ret := ir.EffectsReadNone
	for _, bb := range fn.Blocks() {
		for _, p := range fn.Instrs(bb) {
			switch p.Op.Effect() {
			case ir.EffectRead:
				ret = ir.EffectsReadOnly
			case ir.EffectWrite, ir.EffectRefCount, ir.EffectCall, ir.EffectTrap:
				return ir.EffectsReadWrite
			}
			if p.Op == ir.OpUnreachable {
				return ir.EffectsReadWrite
			}
		}
	}

	/* loops may not terminate */
	if hasCycle(fn) {
		return ir.EffectsReadWrite
	} else {
		return ret
	}
}

type _Frame struct {
	bb   *ir.Block
	next int
}

// hasCycle checks for a back edge among the blocks reachable from the entry.
func hasCycle(fn *ir.Function) bool {
	entry := fn.Entry()
	state := make(map[ir.BlockID]uint8)

	/* nothing to walk */
	if entry == nil {
		return false
	}

	/* depth-first walk, blocks on the stack are in state 1 */
	st := lane.NewStack()
	state[entry.ID] = 1
	for st.Push(&_Frame{bb: entry}); !st.Empty(); {
		fp := st.Head().(*_Frame)
		succ := fn.Successors(fp.bb)

		/* all successors visited */
		if fp.next == len(succ) {
			state[fp.bb.ID] = 2
			st.Pop()
			continue
		}

		/* follow the next edge */
		bb := succ[fp.next]
		fp.next++
		switch state[bb.ID] {
		case 0:
			state[bb.ID] = 1
			st.Push(&_Frame{bb: bb})
		case 1:
			return true
		}
	}
	return false
}
