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

// Clone copies the body of src into a new function named name, substituting every
// generic parameter according to subst.
func Clone(src *Function, name string, subst SubstMap) *Function {
	fn := NewFunction(name, src.Type.Subst(subst))
	fn.Effects = src.Effects
	fn.External = src.External
	vmap := make(map[ValueID]ValueID)
	bmap := make(map[BlockID]BlockID)

	/* forward references, patched once every value exists */
	type _Fixup struct {
		p    *Instr
		slot int
		v    ValueID
	}

	/* Phase 1: create all the blocks with their arguments */
	for _, bb := range src.Blocks() {
		args := make([]*Type, len(bb.Args))
		for i, v := range bb.Args {
			args[i] = src.TypeOf(v).Subst(subst)
		}
		nb := fn.AddBlock(args...)
		bmap[bb.ID] = nb.ID
		for i, v := range bb.Args {
			vmap[v] = nb.Args[i]
		}
	}

	/* Phase 2: copy every instruction, operands defined later become fixups */
	var fixups []_Fixup
	b := NewBuilder(fn)
	for _, bb := range src.Blocks() {
		b.SetBlock(fn.blocks[bmap[bb.ID]])
		for _, p := range src.Instrs(bb) {
			aux := p.Aux
			ops := make([]ValueID, len(p.ops))
			res := make([]*Type, len(p.Results))

			/* substitute the payload */
			if aux.Type != nil {
				aux.Type = aux.Type.Subst(subst)
			}
			if aux.Subst != nil {
				aux.Subst = aux.Subst.Compose(subst)
			}
			if aux.Succs != nil {
				aux.Succs = append([]Successor(nil), aux.Succs...)
				for i := range aux.Succs {
					aux.Succs[i].Block = bmap[aux.Succs[i].Block]
				}
			}

			/* map the operands */
			for i, op := range p.ops {
				if v, ok := vmap[op.v]; ok {
					ops[i] = v
				} else if src.KindOf(op.v) == VUndef {
					ops[i] = fn.Undef(src.TypeOf(op.v).Subst(subst))
					vmap[op.v] = ops[i]
				} else {
					ops[i] = fn.Undef(src.TypeOf(op.v).Subst(subst))
					fixups = append(fixups, _Fixup{slot: i, v: op.v})
				}
			}

			/* map the result types */
			for i, r := range p.Results {
				res[i] = src.TypeOf(r).Subst(subst)
			}

			/* create the instruction */
			q := b.CreateInstr(p.Op, aux, res, ops...)
			for i, r := range p.Results {
				vmap[r] = q.Results[i]
			}

			/* attach pending fixups to the new instruction */
			for i := len(fixups) - 1; i >= 0 && fixups[i].p == nil; i-- {
				fixups[i].p = q
			}
		}
	}

	/* Phase 3: patch the forward references */
	for _, fx := range fixups {
		fn.SetOperand(fx.p, fx.slot, vmap[fx.v])
	}

	/* the clone starts with an empty tracking list */
	b.Drain()
	return fn
}
