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

// Package combine implements the local instruction combiner: a worklist driven fixed-point
// loop of dead code elimination, algebraic simplification and peephole rewrites.
package combine

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cloudwego/peephole/internal/linker"
	"github.com/cloudwego/peephole/internal/specialize"
	"github.com/cloudwego/peephole/ir"
)

var (
	RunCount       uint64
	IterationCount uint64
	EraseCount     uint64
	SimplifyCount  uint64
	RewriteCount   uint64
)

// Config provides the collaborators of a combiner. Every field is optional: rules that need
// a missing collaborator simply don't fire.
type Config struct {
	Linker        linker.Linker
	Specializer   specialize.Specializer
	Logger        *slog.Logger

	// MaxIterations bounds the iterations that change the function, the final one that
	// finds nothing left to do is not counted. Zero means unlimited.
	MaxIterations int
}

// Stats counts the edits of one run. Rewritten counts every peephole rule that fired,
// including the ones that only erased instructions.
type Stats struct {
	Iterations int
	Erased     int
	Simplified int
	Rewritten  int
}

// Changed reports whether the run modified the function.
func (self Stats) Changed() bool {
	return self.Erased != 0 || self.Simplified != 0 || self.Rewritten != 0
}

// Combiner runs the combiner over a single function. It must not be shared between
// goroutines, and nothing else may access the function while it runs.
type Combiner struct {
	fn      *ir.Function
	cfg     Config
	b       *ir.Builder
	wl      *Worklist
	stats   Stats
	changed bool
}

func New(fn *ir.Function, cfg Config) *Combiner {
	return &Combiner{
		fn:  fn,
		cfg: cfg,
		b:   ir.NewBuilder(fn),
		wl:  NewWorklist(),
	}
}

// Run rewrites the function until no rule applies anymore.
func (self *Combiner) Run() Stats {
	atomic.AddUint64(&RunCount, 1)
	if self.fn.External {
		return self.stats
	}

	/* iterate until nothing changes */
	for {
		self.changed = false
		self.stats.Iterations++
		atomic.AddUint64(&IterationCount, 1)

		/* seed the worklist, and drain it */
		self.wl.Reset()
		self.wl.AddInitialGroup(self.collectReachable())
		for !self.wl.Empty() {
			if id := self.wl.Pop(); id != ir.NoInstr {
				self.step(id)
				self.drain()
			}
		}

		/* stop at the fixed point */
		if !self.changed {
			break
		}

		/* a rule that keeps undoing another one would never stop */
		if self.cfg.MaxIterations > 0 && self.stats.Iterations > self.cfg.MaxIterations {
			panic(fmt.Sprintf("combine: @%s still changing after %d iterations", self.fn.Name, self.cfg.MaxIterations))
		}
	}
	return self.stats
}

func (self *Combiner) step(id ir.InstrID) {
	p := self.fn.Instr(id)
	if p == nil {
		panic(fmt.Sprintf("combine: worklist holds erased instruction %s in @%s", id, self.fn.Name))
	}

	/* trivial dead code */
	if self.fn.IsTriviallyDead(p) {
		self.erase(p, "dce")
		return
	}

	/* algebraic identities */
	if v, ok := Simplify(self.fn, p); ok {
		self.simplified(p, v)
		return
	}

	/* peephole rules */
	switch e := self.visit(p); e.kind {
	case _NoChange:
		break
	case _Erased:
		self.rewritten(nil, "")
	case _Replace:
		self.replace(p, e.repl, e.rule)
	case _InPlace:
		self.inplace(p, e.rule)
	default:
		panic("unreachable")
	}
}

// drain schedules every instruction created by the builder since the last drain.
func (self *Combiner) drain() {
	for _, id := range self.b.Drain() {
		if self.fn.Instr(id) != nil {
			self.wl.Add(id)
		}
	}
}

func (self *Combiner) simplified(p *ir.Instr, v ir.ValueID) {
	self.trace("simplify", p)
	self.replaceValue(p.Result(), v)
	self.erase(p, "")
	self.changed = true
	self.stats.Simplified++
	atomic.AddUint64(&SimplifyCount, 1)
}

func (self *Combiner) rewritten(p *ir.Instr, rule string) {
	if rule != "" {
		self.trace(rule, p)
	}
	self.changed = true
	self.stats.Rewritten++
	atomic.AddUint64(&RewriteCount, 1)
}

func (self *Combiner) replace(p *ir.Instr, q *ir.Instr, rule string) {
	if p == q || len(p.Results) != len(q.Results) {
		panic(fmt.Sprintf("combine: invalid replacement of %s with %s", p, q))
	}

	/* redirect every result */
	self.rewritten(p, rule)
	for i, r := range p.Results {
		self.replaceValue(r, q.Results[i])
	}

	/* the replacement itself */
	self.wl.Add(q.ID)
	self.erase(p, "")
}

func (self *Combiner) inplace(p *ir.Instr, rule string) {
	self.rewritten(p, rule)
	if self.fn.IsTriviallyDead(p) {
		self.erase(p, "")
	} else {
		self.wl.Add(p.ID)
		self.wl.AddUsersOfResults(self.fn, p)
	}
}

/** Edit protocol, the only way rules mutate the function **/

// replaceValue redirects every use of old to v, and schedules v and its users.
func (self *Combiner) replaceValue(old ir.ValueID, v ir.ValueID) {
	if tx, ty := self.fn.TypeOf(old), self.fn.TypeOf(v); tx != ty {
		panic(fmt.Sprintf("combine: replacing %s : %s with %s : %s changes the type", old, tx, v, ty))
	}

	/* redirect the uses */
	self.fn.ReplaceAllUsesWith(old, v)
	self.wl.AddUsersOf(self.fn, v)

	/* the definition may simplify further now */
	if def := self.fn.DefOf(v); def != nil {
		self.wl.Add(def.ID)
	}
}

// kill erases p without scheduling anything.
func (self *Combiner) kill(p *ir.Instr, rule string) {
	if rule != "" {
		self.trace(rule, p)
	}
	self.wl.Remove(p.ID)
	self.fn.Erase(p)
	self.stats.Erased++
	atomic.AddUint64(&EraseCount, 1)
}

// erase erases p and schedules the definitions of its operands, which may have become dead.
func (self *Combiner) erase(p *ir.Instr, rule string) {
	defs := make([]ir.InstrID, 0, p.NumOperands())
	for _, v := range p.Operands() {
		if def := self.fn.DefOf(v); def != nil {
			defs = append(defs, def.ID)
		}
	}

	/* erase the instruction */
	self.changed = true
	self.kill(p, rule)

	/* reschedule the operand definitions */
	for _, id := range defs {
		if self.fn.Instr(id) != nil {
			self.wl.Add(id)
		}
	}
}

// eraseAll erases instructions in order, each must be unused once its predecessors are gone.
func (self *Combiner) eraseAll(ins []*ir.Instr) {
	for _, p := range ins {
		self.erase(p, "")
	}
}

// setOperand redirects an operand of p and schedules p again.
func (self *Combiner) setOperand(p *ir.Instr, i int, v ir.ValueID) {
	old := p.Operand(i)
	self.fn.SetOperand(p, i, v)
	self.changed = true

	/* the old operand may have become dead */
	if def := self.fn.DefOf(old); def != nil {
		self.wl.Add(def.ID)
	}
}

func (self *Combiner) trace(rule string, p *ir.Instr) {
	if self.cfg.Logger != nil {
		self.cfg.Logger.Debug("combine",
			slog.String("func", self.fn.Name),
			slog.String("rule", rule),
			slog.String("instr", p.String()),
		)
	}
}
