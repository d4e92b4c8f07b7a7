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
	"testing"

	"github.com/cloudwego/peephole/internal/linker"
	"github.com/cloudwego/peephole/internal/specialize"
	"github.com/cloudwego/peephole/ir"
	"github.com/cloudwego/peephole/ir/verify"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

var (
	tObject  = ir.ClassOf("Object", nil)
	tBase    = ir.ClassOf("Base", tObject)
	tDerived = ir.ClassOf("Derived", tBase)
	tProto   = ir.ExistentialOf("Proto")
	tWrap    = ir.StructOf("Wrap", ir.Field{Name: "v", Type: ir.Int64})
	tPair    = ir.StructOf("Pair", ir.Field{Name: "a", Type: ir.Int64}, ir.Field{Name: "b", Type: ir.Int64})
	tOpt     = ir.EnumOf("Opt", ir.Case{Name: "none"}, ir.Case{Name: "some", Payload: ir.Int64})
)

func params(types ...*ir.Type) []ir.Param {
	ret := make([]ir.Param, len(types))
	for i, t := range types {
		ret[i] = ir.Param{Type: t}
	}
	return ret
}

// newFunc creates a function whose entry block takes the parameters as arguments, and a
// builder appending to that block.
func newFunc(name string, args []ir.Param, results ...*ir.Type) (*ir.Function, *ir.Builder, []ir.ValueID) {
	types := make([]*ir.Type, len(args))
	for i, p := range args {
		types[i] = p.Type
	}
	fn := ir.NewFunction(name, ir.FuncOf(args, results, false))
	bb := fn.AddBlock(types...)
	b := ir.NewBuilder(fn)
	b.SetBlock(bb)
	return fn, b, bb.Args
}

// runCombiner verifies fn, combines it, and verifies the result again.
func runCombiner(t *testing.T, fn *ir.Function, cfg Config) Stats {
	require.NoError(t, verify.Function(fn), fn.Dump())
	st := New(fn, cfg).Run()
	if err := verify.Function(fn); err != nil {
		spew.Dump(st)
		require.NoError(t, err, fn.Dump())
	}
	return st
}

// withModule returns a combiner configuration backed by the collaborators of mod.
func withModule(mod *ir.Module) Config {
	return Config{
		Linker:      linker.New(mod, nil),
		Specializer: specialize.New(mod),
	}
}

// defOf returns the definition of the idx-th operand of the only instruction of op.
func defOf(t *testing.T, fn *ir.Function, op ir.Op, idx int) *ir.Instr {
	p := only(t, fn, op)
	return fn.DefOf(p.Operand(idx))
}

// only returns the single instruction of op in fn.
func only(t *testing.T, fn *ir.Function, op ir.Op) *ir.Instr {
	var ret []*ir.Instr
	for _, bb := range fn.Blocks() {
		for _, p := range fn.Instrs(bb) {
			if p.Op == op {
				ret = append(ret, p)
			}
		}
	}
	require.Len(t, ret, 1, fn.Dump())
	return ret[0]
}
