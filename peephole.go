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

// Package peephole is a local optimizer for a typed SSA intermediate representation. It
// repeatedly applies algebraic identities, dead code elimination and peephole rewrites to
// every function until nothing changes anymore.
package peephole

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/cloudwego/peephole/internal/combine"
	"github.com/cloudwego/peephole/internal/devirt"
	"github.com/cloudwego/peephole/internal/linker"
	"github.com/cloudwego/peephole/internal/opts"
	"github.com/cloudwego/peephole/internal/specialize"
	"github.com/cloudwego/peephole/ir"
	"github.com/cloudwego/peephole/ir/verify"
)

// Stats counts the edits made by the combiner.
type Stats = combine.Stats

// Summary describes an external function for EncodeLibrary.
type Summary = linker.Summary

// EncodeLibrary serializes external function summaries for WithLibrary.
func EncodeLibrary(sums []Summary) ([]byte, error) {
	return linker.EncodeLibrary(sums)
}

type _Context struct {
	mod  *ir.Module
	opts opts.Options
	cfg  combine.Config
}

type _Pass interface {
	Apply(*ir.Function, *_Context, *Stats) error
}

type _PassDescriptor struct {
	Name string
	Pass _Pass
}

var _Passes = [...]_PassDescriptor{
	{Name: "Devirtualization", Pass: new(_Devirtualize)},
	{Name: "Instruction Combining", Pass: new(_Combine)},
	{Name: "Verification", Pass: new(_Verify)},
}

type _Devirtualize struct{}

func (_Devirtualize) Apply(fn *ir.Function, ctx *_Context, _ *Stats) error {
	if ctx.opts.Devirtualize {
		devirt.Devirtualize(fn, ctx.mod)
	}
	return nil
}

type _Combine struct{}

func (_Combine) Apply(fn *ir.Function, ctx *_Context, st *Stats) error {
	add(st, combine.New(fn, ctx.cfg).Run())
	return nil
}

type _Verify struct{}

func (_Verify) Apply(fn *ir.Function, ctx *_Context, _ *Stats) error {
	if ctx.opts.Verify {
		return verify.Function(fn)
	} else {
		return nil
	}
}

func newContext(mod *ir.Module, options []Option) (*_Context, error) {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}

	/* load the external library eagerly, so that malformed ones are reported */
	ln := linker.New(mod, o.Library)
	if err := ln.Err(); err != nil {
		return nil, err
	}

	/* create the context */
	return &_Context{
		mod:  mod,
		opts: o,
		cfg: combine.Config{
			Linker:        ln,
			Specializer:   specialize.New(mod),
			Logger:        o.Logger,
			MaxIterations: o.MaxIterations,
		},
	}, nil
}

func (self *_Context) optimize(fn *ir.Function) (Stats, error) {
	var st Stats
	if fn.External {
		return st, nil
	}

	/* run every pass in order */
	for _, p := range _Passes {
		if err := p.Pass.Apply(fn, self, &st); err != nil {
			return st, err
		}
	}
	return st, nil
}

// Optimize optimizes a single function of mod.
func Optimize(mod *ir.Module, fn *ir.Function, options ...Option) (Stats, error) {
	ctx, err := newContext(mod, options)
	if err != nil {
		return Stats{}, err
	}

	/* effects of the callees must be known */
	linker.InferEffects(mod)
	return ctx.optimize(fn)
}

// OptimizeModule optimizes every function of mod, including the specializations created
// while doing so. Generic functions are optimized one by one first, since specializing them
// reads their bodies; the rest are optimized concurrently according to WithParallelism.
func OptimizeModule(mod *ir.Module, options ...Option) (Stats, error) {
	var ret Stats
	ctx, err := newContext(mod, options)

	/* check for errors */
	if err != nil {
		return ret, err
	}

	/* effects of the callees must be known */
	done := make(map[*ir.Function]bool)
	linker.InferEffects(mod)

	/* keep going while new specializations show up */
	for {
		var gen []*ir.Function
		var todo []*ir.Function

		/* collect the functions not optimized yet */
		for _, fn := range mod.Functions() {
			if !fn.External && !done[fn] {
				done[fn] = true
				if len(fn.Generic) != 0 {
					gen = append(gen, fn)
				} else {
					todo = append(todo, fn)
				}
			}
		}

		/* reached the fixed point */
		if len(gen) == 0 && len(todo) == 0 {
			return ret, nil
		}

		/* generic functions, one by one */
		for _, fn := range gen {
			st, err := ctx.optimize(fn)
			add(&ret, st)
			if err != nil {
				return ret, err
			}
		}

		/* everything else */
		if err = ctx.optimizeAll(todo, &ret); err != nil {
			return ret, err
		}
	}
}

func add(st *Stats, v Stats) {
	st.Iterations += v.Iterations
	st.Erased += v.Erased
	st.Simplified += v.Simplified
	st.Rewritten += v.Rewritten
}

func (self *_Context) optimizeAll(fns []*ir.Function, ret *Stats) error {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var exc interface{}
	errs := make([]error, len(fns))

	/* sequential */
	if self.opts.Parallelism <= 1 {
		for _, fn := range fns {
			st, err := self.optimize(fn)
			add(ret, st)
			if err != nil {
				return err
			}
		}
		return nil
	}

	/* invariant violations must not be swallowed by the pool */
	pool := gopool.NewPool("peephole", int32(self.opts.Parallelism), gopool.NewConfig())
	pool.SetPanicHandler(func(_ context.Context, v interface{}) {
		mu.Lock()
		if exc == nil {
			exc = v
		}
		mu.Unlock()
		wg.Done()
	})

	/* one goroutine owns each function */
	for i, fn := range fns {
		i, fn := i, fn
		wg.Add(1)
		pool.Go(func() {
			st, err := self.optimize(fn)
			mu.Lock()
			add(ret, st)
			errs[i] = err
			mu.Unlock()
			wg.Done()
		})
	}

	/* wait for all of them, and re-raise panics in the caller */
	wg.Wait()
	if exc != nil {
		panic(fmt.Sprintf("peephole: optimizer panicked: %v", exc))
	}

	/* report the first error in function order */
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
