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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClone_Substitutes(t *testing.T) {
	tau := ParamOf("T")
	box := StructOf("Box", Field{Name: "v", Type: tau}, Field{Name: "n", Type: Int64})
	src := NewFunction("unbox", FuncOf([]Param{{Type: box}}, []*Type{tau}, false))
	src.Generic = []string{"T"}

	/* entry: branch to the exit block with the payload */
	b := NewBuilder(src)
	entry := src.AddBlock(box)
	exit := src.AddBlock(tau)
	b.SetBlock(entry)
	v := b.StructExtract(entry.Args[0], 0)
	b.Br(exit, v.Result())
	b.SetBlock(exit)
	b.Return(exit.Args[0])

	/* clone it for Int64 */
	fn := Clone(src, "unbox<Int64>", SubstMap{"T": Int64})
	require.NoError(t, fn.CheckUseLists())
	require.Equal(t, "unbox<Int64>", fn.Name)
	require.Equal(t, FuncOf([]Param{{Type: StructOf("Box", Field{Name: "v", Type: Int64}, Field{Name: "n", Type: Int64})}}, []*Type{Int64}, false), fn.Type)
	require.Equal(t, src.Ops(), fn.Ops())
	require.Equal(t, 2, fn.NumBlocks())

	/* the copy is independent and fully typed */
	ext := fn.First(fn.Entry())
	require.Equal(t, Int64, fn.TypeOf(ext.Result()))
	require.Equal(t, Int64, fn.TypeOf(fn.Blocks()[1].Args[0]))
	br := fn.Terminator(fn.Entry())
	require.Equal(t, fn.Blocks()[1].ID, br.Succs[0].Block)
	require.Equal(t, []ValueID{ext.Result()}, br.SuccArgs(0))
	require.Equal(t, tau, src.TypeOf(v.Result()))
}

func TestClone_ForwardReferences(t *testing.T) {
	src := NewFunction("loop", FuncOf(nil, nil, false))
	b := NewBuilder(src)
	entry := src.AddBlock()
	body := src.AddBlock()
	next := src.AddBlock()

	/* the body uses a value defined in a block laid out after it */
	b.SetBlock(entry)
	b.Br(next)
	b.SetBlock(body)
	b.Return()
	b.SetBlock(next)
	one := b.IntegerLiteral(Int64, 1)
	b.Br(body)
	b.SetBlock(body)
	b.SetInsertionPoint(src.First(body))
	b.DebugValue(one.Result())

	fn := Clone(src, "loop2", nil)
	require.NoError(t, fn.CheckUseLists())
	dbg := fn.First(fn.Blocks()[1])
	require.Equal(t, OpDebugValue, dbg.Op)
	require.Equal(t, OpIntegerLiteral, fn.DefOf(dbg.Operand(0)).Op)
	require.Equal(t, VResult, fn.KindOf(dbg.Operand(0)))
}
