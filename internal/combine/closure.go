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

func (self *Combiner) visitPartialApply(p *ir.Instr) _Edit {
	fn := self.fn
	callee := p.Operand(0)

	/* partial_apply %f() => thin_to_thick_function %f */
	if p.NumOperands() == 1 && len(p.Subst) == 0 && !fn.TypeOf(callee).Thick {
		return replacedBy("closure.thin_to_thick", self.at(p).ThinToThickFunction(callee))
	}

	/* a closure that is only released is dead */
	users := fn.Users(p.Result())
	for _, u := range users {
		if u.Op != ir.OpRelease && u.Op != ir.OpDebugValue {
			return noChange
		}
	}

	/* releasing the closure releases its captures, and the context of a thick callee */
	for _, u := range users {
		if u.Op == ir.OpRelease {
			b := self.at(u)
			for _, v := range p.Operands() {
				if !isUncounted(fn, v) {
					b.Release(v)
				}
			}
		}
		self.erase(u, "")
	}

	/* erase the closure */
	self.erase(p, "closure.dead")
	return erased
}

func (self *Combiner) visitApply(p *ir.Instr) _Edit {
	switch q := self.fn.DefOf(p.Operand(0)); {
	case q == nil:
		return noChange
	case q.Op == ir.OpPartialApply:
		return self.fuseClosureCall(p, q)
	case q.Op == ir.OpThinToThickFunction:
		return self.thinCall(p, q)
	case q.Op == ir.OpFunctionRef:
		if e := self.removeDeadCall(p, q); e.kind != _NoChange {
			return e
		} else {
			return self.specializeCall(p, q)
		}
	default:
		return noChange
	}
}

// apply(thin_to_thick_function(%f), ...) => apply(%f, ...)
func (self *Combiner) thinCall(p *ir.Instr, q *ir.Instr) _Edit {
	p.Owned = false
	self.setOperand(p, 0, q.Operand(0))
	return changedInPlace("closure.thin_call")
}

// apply(partial_apply(%f, caps...), args...) => apply(%f, args..., caps...)
//
// Captures passed to owned parameters are retained first since the closure still owns them,
// and the closure is released after the call when the call consumed it.
func (self *Combiner) fuseClosureCall(p *ir.Instr, q *ir.Instr) _Edit {
	fn := self.fn
	caps := q.Operands()[1:]
	args := p.Operands()[1:]

	/* a call through a closure carries no substitutions of its own */
	if len(p.Subst) != 0 {
		return noChange
	}

	/* the full signature of the partially applied function */
	callee := q.Operand(0)
	sig := fn.TypeOf(callee).Subst(q.Subst)

	/* retain the captures the callee will consume */
	b := self.at(p)
	for i, v := range caps {
		if sig.Params[len(args)+i].Owned && !isUncounted(fn, v) {
			b.Retain(v)
		}
	}

	/* generic callees get a specialized copy if possible */
	subst := q.Subst
	if ref, ok := self.specialize(callee, subst); ok {
		callee, subst = ref, nil
	}

	/* the fused call */
	r := b.Apply(callee, append(args, caps...), subst)
	if p.Owned {
		self.after(r).Release(q.Result())
	}
	return replacedBy("closure.apply", r)
}

// specialize returns a reference to the specialization of a generic function_ref.
func (self *Combiner) specialize(callee ir.ValueID, subst ir.SubstMap) (ir.ValueID, bool) {
	fn := self.fn
	ref := defOp(fn, callee, ir.OpFunctionRef)

	/* need both collaborators, and a direct reference */
	if ref == nil || len(subst) == 0 || self.cfg.Linker == nil || self.cfg.Specializer == nil {
		return ir.NoValue, false
	}

	/* find the generic function */
	gen, ok := self.cfg.Linker.Lookup(ref.Name)
	if !ok || gen.Type != ref.Type {
		return ir.NoValue, false
	}

	/* the specialization must have the substituted signature */
	sp := self.cfg.Specializer.GetOrCreate(gen, subst)
	if sp.Type == nil || sp.Type != ref.Type.Subst(subst) {
		return ir.NoValue, false
	}

	/* reference the specialization at the current insertion point */
	return self.b.FunctionRef(sp.Name, sp.Type).Result(), true
}

// apply(function_ref @f, args...) <τ := T> => apply(function_ref @f<τ := T>, args...)
func (self *Combiner) specializeCall(p *ir.Instr, q *ir.Instr) _Edit {
	if len(p.Subst) == 0 {
		return noChange
	}

	/* create the specialized callee */
	self.at(p)
	ref, ok := self.specialize(q.Result(), p.Subst)
	if !ok {
		return noChange
	}

	/* call it directly */
	return replacedBy("call.specialize", self.b.Apply(ref, p.Operands()[1:], nil))
}

// A call to a function without observable effects is dead when its results are only retained,
// released or described by debug info. Arguments consumed by the call are released instead.
func (self *Combiner) removeDeadCall(p *ir.Instr, q *ir.Instr) _Edit {
	var users []*ir.Instr
	fn := self.fn

	/* need the linker to know the effects */
	if self.cfg.Linker == nil {
		return noChange
	}

	/* the callee must be pure */
	callee, ok := self.cfg.Linker.Lookup(q.Name)
	if !ok || !self.cfg.Linker.EffectsOf(callee).IsPure() {
		return noChange
	}

	/* check every use of every result */
	for _, r := range p.Results {
		for _, u := range fn.Users(r) {
			switch u.Op {
			case ir.OpRetain, ir.OpRelease, ir.OpDebugValue:
				users = append(users, u)
			default:
				return noChange
			}
		}
	}

	/* release the consumed arguments */
	b := self.at(p)
	sig := fn.TypeOf(q.Result()).Subst(p.Subst)
	for i, v := range p.Operands()[1:] {
		if sig.Params[i].Owned && !isUncounted(fn, v) {
			b.Release(v)
		}
	}

	/* erase the use chain, then the call */
	self.eraseAll(users)
	self.erase(p, "call.dead")
	return erased
}
