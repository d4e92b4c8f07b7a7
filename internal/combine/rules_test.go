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
	"bytes"
	"log/slog"
	"testing"

	"github.com/cloudwego/peephole/internal/linker"
	"github.com/cloudwego/peephole/internal/specialize"
	"github.com/cloudwego/peephole/ir"
	"github.com/stretchr/testify/require"
)

/** Reference counting **/

func TestRefCount_PairAcrossOtherRetains(t *testing.T) {
	fn, b, args := newFunc("rc_pair", params(tObject, tObject))
	b.Release(args[0])
	b.Retain(args[1])
	b.Retain(args[0])
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpRetain, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[1], only(t, fn, ir.OpRetain).Operand(0))
}

func TestRefCount_DebugValueBlocksPairing(t *testing.T) {
	fn, b, args := newFunc("rc_debug", params(tObject))
	b.Retain(args[0])
	b.DebugValue(args[0])
	b.Release(args[0])
	b.Return()
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
	require.Equal(t, []ir.Op{ir.OpRetain, ir.OpDebugValue, ir.OpRelease, ir.OpReturn}, fn.Ops())
}

func TestRefCount_DifferentValues(t *testing.T) {
	fn, b, args := newFunc("rc_different", params(tObject, tObject))
	b.Retain(args[0])
	b.Release(args[1])
	b.Return()
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

func TestRefCount_Uncounted(t *testing.T) {
	sig := ir.FuncOf(nil, nil, false)
	fn, b, args := newFunc("rc_uncounted", params(ir.Int64))
	b.Retain(args[0])
	tt := b.ThinToThickFunction(b.FunctionRef("f", sig).Result())
	b.Release(tt.Result())
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpReturn}, fn.Ops(), fn.Dump())
}

/** Casts **/

func TestCast_UpcastChain(t *testing.T) {
	fn, b, args := newFunc("upcast_chain", params(tDerived), tObject)
	u1 := b.Upcast(args[0], tBase)
	u2 := b.Upcast(u1.Result(), tObject)
	b.Return(u2.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpUpcast, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[0], u2.Operand(0))
}

func TestCast_RefCastRoundTrip(t *testing.T) {
	fn, b, args := newFunc("ref_round_trip", params(tBase), tBase)
	c1 := b.UncheckedRefCast(args[0], tDerived)
	c2 := b.UncheckedRefCast(c1.Result(), tBase)
	ret := b.Return(c2.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[0], ret.Operand(0))
}

func TestCast_RawPointerToRef(t *testing.T) {
	fn, b, args := newFunc("raw_pointer_to_ref", params(tBase), tDerived)
	p := b.RefToRawPointer(args[0])
	r := b.RawPointerToRef(p.Result(), tDerived)
	b.Return(r.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpUncheckedRefCast, ir.OpReturn}, fn.Ops(), fn.Dump())
	c := only(t, fn, ir.OpUncheckedRefCast)
	require.Equal(t, args[0], c.Operand(0))
	require.Equal(t, tDerived, c.Type)
}

func TestCast_BitwiseBetweenReferences(t *testing.T) {
	fn, b, args := newFunc("bitwise_ref", params(tBase), tDerived)
	c := b.UncheckedBitwiseCast(args[0], tDerived)
	b.Return(c.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpUncheckedRefCast, ir.OpReturn}, fn.Ops(), fn.Dump())
}

func TestCast_AddrCastChain(t *testing.T) {
	fn, b, args := newFunc("addr_chain", params(tPair.Addr()), ir.Int64)
	c1 := b.UncheckedAddrCast(args[0], tWrap.Addr())
	c2 := b.UncheckedAddrCast(c1.Result(), ir.Int64.Addr())
	v := b.Load(c2.Result())
	b.Return(v.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpUncheckedAddrCast, ir.OpLoad, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[0], c2.Operand(0))
}

func TestCast_PointerToAddressOfOtherType(t *testing.T) {
	fn, b, args := newFunc("pointer_to_address", params(tPair.Addr()), ir.Int64)
	p := b.AddressToPointer(args[0])
	a := b.PointerToAddress(p.Result(), ir.Int64.Addr())
	v := b.Load(a.Result())
	b.Return(v.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpUncheckedAddrCast, ir.OpLoad, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[0], only(t, fn, ir.OpUncheckedAddrCast).Operand(0))
}

/** Memory **/

func TestAlloc_NarrowExistential(t *testing.T) {
	fn, b, args := newFunc("existential", params(ir.Int64), ir.Int64)
	a := b.AllocStack(tProto)
	e := b.InitExistentialAddr(a.Result(), ir.Int64)
	b.Store(args[0], e.Result())
	v := b.Load(e.Result())
	b.DestroyAddr(a.Result())
	b.DeallocStack(a.Result())
	b.Return(v.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{
		ir.OpAllocStack,
		ir.OpStore,
		ir.OpLoad,
		ir.OpDestroyAddr,
		ir.OpDeallocStack,
		ir.OpReturn,
	}, fn.Ops(), fn.Dump())
	p := only(t, fn, ir.OpAllocStack)
	require.Equal(t, ir.Int64, p.Type)
	require.Equal(t, p.Result(), only(t, fn, ir.OpDeallocStack).Operand(0))
	require.Equal(t, p.Result(), only(t, fn, ir.OpDestroyAddr).Operand(0))
}

func TestAlloc_ExistentialInitializedTwice(t *testing.T) {
	fn, b, args := newFunc("existential_twice", params(ir.Int64))
	a := b.AllocStack(tProto)
	e1 := b.InitExistentialAddr(a.Result(), ir.Int64)
	b.Store(args[0], e1.Result())
	e2 := b.InitExistentialAddr(a.Result(), ir.Int64)
	b.Store(args[0], e2.Result())
	b.DeallocStack(a.Result())
	b.Return()
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

func TestAlloc_AddressPassedToCall(t *testing.T) {
	sig := ir.FuncOf(params(ir.Int64.Addr()), nil, false)
	fn, b, args := newFunc("escape", params(ir.Int64))
	a := b.AllocStack(ir.Int64)
	b.Store(args[0], a.Result())
	b.Apply(b.FunctionRef("use", sig).Result(), []ir.ValueID{a.Result()}, nil)
	b.DeallocStack(a.Result())
	b.Return()
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

func TestLoad_AggregateProjection(t *testing.T) {
	fn, b, args := newFunc("aggregate_load", params(tPair.Addr()), ir.Int64)
	v := b.Load(args[0])
	x := b.StructExtract(v.Result(), 1)
	ret := b.Return(x.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpStructElementAddr, ir.OpLoad, ir.OpReturn}, fn.Ops(), fn.Dump())
	e := only(t, fn, ir.OpStructElementAddr)
	require.Equal(t, 1, e.Index)
	require.Equal(t, args[0], e.Operand(0))
	require.Equal(t, ir.OpLoad, fn.DefOf(ret.Operand(0)).Op)
}

func TestLoad_AggregateEscapes(t *testing.T) {
	fn, b, args := newFunc("aggregate_escape", params(tPair.Addr()), tPair)
	v := b.Load(args[0])
	b.Return(v.Result())
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

func TestAddr_IndexRawPointer(t *testing.T) {
	fn, b, args := newFunc("index_raw_pointer", params(ir.RawPointer(), ir.Int64), ir.Int64)
	s := b.StrideOf(ir.Int64)
	m := b.Arith(ir.ArithMul, args[1], s.Result())
	p := b.IndexRawPointer(args[0], m.Result())
	a := b.PointerToAddress(p.Result(), ir.Int64.Addr())
	v := b.Load(a.Result())
	b.Return(v.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpPointerToAddress, ir.OpIndexAddr, ir.OpLoad, ir.OpReturn}, fn.Ops(), fn.Dump())
	ia := only(t, fn, ir.OpIndexAddr)
	require.Equal(t, args[1], ia.Operand(1))
	require.Equal(t, args[0], fn.DefOf(ia.Operand(0)).Operand(0))
}

func TestAddr_IndexRawPointerWrongStride(t *testing.T) {
	fn, b, args := newFunc("index_wrong_stride", params(ir.RawPointer(), ir.Int64), ir.Int64)
	s := b.StrideOf(tPair)
	m := b.Arith(ir.ArithMul, args[1], s.Result())
	p := b.IndexRawPointer(args[0], m.Result())
	a := b.PointerToAddress(p.Result(), ir.Int64.Addr())
	v := b.Load(a.Result())
	b.Return(v.Result())
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

/** Closures and calls **/

func TestClosure_DeadReleasesCaptures(t *testing.T) {
	sig := ir.FuncOf(params(ir.Int64, tObject, ir.Int64), []*ir.Type{ir.Int64}, false)
	fn, b, args := newFunc("dead_closure", params(tObject, ir.Int64))
	ref := b.FunctionRef("callee", sig)
	pa := b.PartialApply(ref.Result(), args, nil)
	b.DebugValue(pa.Result())
	b.Release(pa.Result())
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpRelease, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[0], only(t, fn, ir.OpRelease).Operand(0))
}

func TestClosure_DeadReleasesThickCallee(t *testing.T) {
	ct := ir.FuncOf(params(ir.Int64, tObject), []*ir.Type{ir.Int64}, true)
	fn, b, args := newFunc("dead_thick_closure", params(ct, tObject, ir.Int64))
	pa := b.PartialApply(args[0], args[1:2], nil)
	b.Release(pa.Result())
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpRelease, ir.OpRelease, ir.OpReturn}, fn.Ops(), fn.Dump())
	ins := fn.Instrs(fn.Entry())
	require.Equal(t, args[0], ins[0].Operand(0))
	require.Equal(t, args[1], ins[1].Operand(0))
}

func TestClosure_DeadThinToThickCalleeIsNotReleased(t *testing.T) {
	sig := ir.FuncOf(params(tObject), nil, false)
	fn, b, args := newFunc("dead_thin_closure", params(tObject))
	tt := b.ThinToThickFunction(b.FunctionRef("callee", sig).Result())
	pa := b.PartialApply(tt.Result(), args, nil)
	b.Release(pa.Result())
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpRelease, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[0], only(t, fn, ir.OpRelease).Operand(0))
}

func TestClosure_EscapingIsKept(t *testing.T) {
	sig := ir.FuncOf(params(ir.Int64, tObject), []*ir.Type{ir.Int64}, false)
	ct := ir.FuncOf(params(ir.Int64), []*ir.Type{ir.Int64}, true)
	fn, b, args := newFunc("escaping_closure", params(tObject), ct)
	ref := b.FunctionRef("callee", sig)
	pa := b.PartialApply(ref.Result(), args, nil)
	b.Return(pa.Result())
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

func TestClosure_FuseGuaranteedCapture(t *testing.T) {
	sig := ir.FuncOf(params(ir.Int64, tObject), []*ir.Type{ir.Int64}, false)
	fn, b, args := newFunc("fuse", params(ir.Int64, tObject), ir.Int64)
	ref := b.FunctionRef("callee", sig)
	pa := b.PartialApply(ref.Result(), args[1:], nil)
	r := b.Apply(pa.Result(), args[:1], nil)
	b.Release(pa.Result())
	b.Return(r.Results[0])
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpFunctionRef, ir.OpApply, ir.OpRelease, ir.OpReturn}, fn.Ops(), fn.Dump())
	call := only(t, fn, ir.OpApply)
	require.Equal(t, []ir.ValueID{ref.Result(), args[0], args[1]}, call.Operands())
	require.Equal(t, args[1], only(t, fn, ir.OpRelease).Operand(0))
}

func TestClosure_FuseOwnedCapture(t *testing.T) {
	sig := ir.FuncOf([]ir.Param{{Type: ir.Int64}, {Type: tObject, Owned: true}}, []*ir.Type{ir.Int64}, false)
	fn, b, args := newFunc("fuse_owned", params(ir.Int64, tObject), ir.Int64)
	ref := b.FunctionRef("callee", sig)
	pa := b.PartialApply(ref.Result(), args[1:], nil)
	r := b.Apply(pa.Result(), args[:1], nil)
	b.Release(pa.Result())
	b.Return(r.Results[0])
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{
		ir.OpFunctionRef,
		ir.OpRetain,
		ir.OpApply,
		ir.OpRelease,
		ir.OpReturn,
	}, fn.Ops(), fn.Dump())
	require.Equal(t, args[1], only(t, fn, ir.OpRetain).Operand(0))
	require.Equal(t, args[1], only(t, fn, ir.OpRelease).Operand(0))
}

func TestClosure_FuseConsumedClosure(t *testing.T) {
	sig := ir.FuncOf(params(ir.Int64, tObject), []*ir.Type{ir.Int64}, false)
	fn, b, args := newFunc("fuse_consumed", params(ir.Int64, tObject), ir.Int64)
	ref := b.FunctionRef("callee", sig)
	pa := b.PartialApply(ref.Result(), args[1:], nil)
	r := b.Apply(pa.Result(), args[:1], nil)
	r.Owned = true
	b.Return(r.Results[0])
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpFunctionRef, ir.OpApply, ir.OpRelease, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.False(t, only(t, fn, ir.OpApply).Owned)
	require.Equal(t, args[1], only(t, fn, ir.OpRelease).Operand(0))
}

func TestCall_ThinCall(t *testing.T) {
	sig := ir.FuncOf(params(ir.Int64), []*ir.Type{ir.Int64}, false)
	fn, b, args := newFunc("thin_call", params(ir.Int64), ir.Int64)
	ref := b.FunctionRef("callee", sig)
	tt := b.ThinToThickFunction(ref.Result())
	r := b.Apply(tt.Result(), args, nil)
	r.Owned = true
	b.Return(r.Results[0])
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpFunctionRef, ir.OpApply, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, ref.Result(), r.Operand(0))
	require.False(t, r.Owned)
}

func TestCall_DeadPureCall(t *testing.T) {
	mod := ir.NewModule()
	sig := ir.FuncOf([]ir.Param{{Type: tObject, Owned: true}, {Type: ir.Int64}}, []*ir.Type{tObject}, false)
	mod.Add(ir.NewDeclaration("pure", sig, ir.EffectsReadNone))
	fn, b, args := newFunc("dead_call", params(tObject, ir.Int64))
	ref := b.FunctionRef("pure", sig)
	r := b.Apply(ref.Result(), args, nil)
	b.DebugValue(r.Results[0])
	b.Release(r.Results[0])
	b.Return()
	runCombiner(t, fn, withModule(mod))
	require.Equal(t, []ir.Op{ir.OpRelease, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, args[0], only(t, fn, ir.OpRelease).Operand(0))
}

func TestCall_ImpureCallIsKept(t *testing.T) {
	mod := ir.NewModule()
	sig := ir.FuncOf(params(ir.Int64), []*ir.Type{ir.Int64}, false)
	mod.Add(ir.NewDeclaration("impure", sig, ir.EffectsReadWrite))
	fn, b, args := newFunc("impure_call", params(ir.Int64))
	ref := b.FunctionRef("impure", sig)
	b.Apply(ref.Result(), args, nil)
	b.Return()
	st := runCombiner(t, fn, withModule(mod))
	require.False(t, st.Changed())
	require.Equal(t, []ir.Op{ir.OpFunctionRef, ir.OpApply, ir.OpReturn}, fn.Ops())
}

func TestCall_PureCallWithLiveResult(t *testing.T) {
	mod := ir.NewModule()
	sig := ir.FuncOf(params(ir.Int64), []*ir.Type{ir.Int64}, false)
	mod.Add(ir.NewDeclaration("pure", sig, ir.EffectsReadOnly))
	fn, b, args := newFunc("live_call", params(ir.Int64), ir.Int64)
	ref := b.FunctionRef("pure", sig)
	r := b.Apply(ref.Result(), args, nil)
	b.Return(r.Results[0])
	st := runCombiner(t, fn, withModule(mod))
	require.False(t, st.Changed())
}

func TestCall_PureCallWithoutLinker(t *testing.T) {
	sig := ir.FuncOf(params(ir.Int64), []*ir.Type{ir.Int64}, false)
	fn, b, args := newFunc("no_linker", params(ir.Int64))
	ref := b.FunctionRef("pure", sig)
	b.Apply(ref.Result(), args, nil)
	b.Return()
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

func TestCall_Specialize(t *testing.T) {
	mod := ir.NewModule()
	tau := ir.ParamOf("T")
	gsig := ir.FuncOf(params(tau), []*ir.Type{tau}, false)

	/* func id<T>(x: T) -> T { return x } */
	gen := ir.NewFunction("id", gsig)
	gen.Generic = []string{"T"}
	gb := ir.NewBuilder(gen)
	bb := gen.AddBlock(tau)
	gb.SetBlock(bb)
	gb.Return(bb.Args[0])
	mod.Add(gen)

	/* the caller */
	subst := ir.SubstMap{"T": ir.Int64}
	fn, b, args := newFunc("caller", params(ir.Int64), ir.Int64)
	ref := b.FunctionRef("id", gsig)
	r := b.Apply(ref.Result(), args, subst)
	b.Return(r.Results[0])
	mod.Add(fn)

	/* the call goes to the specialization */
	runCombiner(t, fn, withModule(mod))
	require.Equal(t, []ir.Op{ir.OpFunctionRef, ir.OpApply, ir.OpReturn}, fn.Ops(), fn.Dump())
	call := only(t, fn, ir.OpApply)
	require.Empty(t, call.Subst)
	callee := fn.DefOf(call.Operand(0))
	require.Equal(t, specialize.Mangle(gen, subst), callee.Name)
	sp, ok := mod.Lookup(callee.Name)
	require.True(t, ok)
	require.Equal(t, callee.Type, sp.Type)
	require.Equal(t, []ir.Op{ir.OpReturn}, sp.Ops())
}

func TestCall_SpecializeLibraryDeclaration(t *testing.T) {
	mod := ir.NewModule()
	tau := ir.ParamOf("T")
	gsig := ir.FuncOf(params(tau), []*ir.Type{tau}, false)
	lib, err := linker.EncodeLibrary([]linker.Summary{{Name: "ext_id", Effects: ir.EffectsReadWrite, Type: gsig}})
	require.NoError(t, err)

	/* the caller */
	subst := ir.SubstMap{"T": ir.Int64}
	fn, b, args := newFunc("caller", params(ir.Int64), ir.Int64)
	ref := b.FunctionRef("ext_id", gsig)
	r := b.Apply(ref.Result(), args, subst)
	b.Return(r.Results[0])
	mod.Add(fn)

	/* the declaration carries its signature, so the call can be specialized */
	runCombiner(t, fn, Config{Linker: linker.New(mod, lib), Specializer: specialize.New(mod)})
	call := only(t, fn, ir.OpApply)
	require.Empty(t, call.Subst)
	callee := fn.DefOf(call.Operand(0))
	require.Equal(t, "ext_id<T=i64>", callee.Name)
	require.Same(t, ir.FuncOf(params(ir.Int64), []*ir.Type{ir.Int64}, false), callee.Type)
	sp, ok := mod.Lookup(callee.Name)
	require.True(t, ok)
	require.True(t, sp.External)
	require.Same(t, callee.Type, sp.Type)
}

/** Control flow **/

func TestBranch_CondBrOnLiteral(t *testing.T) {
	fn, b, args := newFunc("cond_br", params(ir.Int64), ir.Int64)
	bt := fn.AddBlock(ir.Int64)
	bf := fn.AddBlock()
	one := b.IntegerLiteral(ir.Int1, 1)
	b.CondBr(one.Result(), bt, args, bf, nil)
	b.SetBlock(bt)
	b.Return(bt.Args[0])
	b.SetBlock(bf)
	b.Return(args[0])
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpBr, ir.OpReturn, ir.OpReturn}, fn.Ops(), fn.Dump())
	br := only(t, fn, ir.OpBr)
	require.Equal(t, bt.ID, br.Succs[0].Block)
	require.Equal(t, args, br.SuccArgs(0))
}

func TestBranch_CondBrOnZero(t *testing.T) {
	fn, b, _ := newFunc("cond_br_zero", nil)
	bt := fn.AddBlock()
	bf := fn.AddBlock()
	zero := b.IntegerLiteral(ir.Int1, 0)
	b.CondBr(zero.Result(), bt, nil, bf, nil)
	b.SetBlock(bt)
	b.Return()
	b.SetBlock(bf)
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, bf.ID, only(t, fn, ir.OpBr).Succs[0].Block)
}

func TestBranch_SwitchEnumDefault(t *testing.T) {
	fn, b, args := newFunc("switch_enum", params(ir.Int64))
	bnone := fn.AddBlock()
	bdef := fn.AddBlock()
	e := b.Enum(tOpt, 1, args[0])
	b.SwitchEnum(e.Result(), ir.Successor{Block: bnone.ID, Case: 0}, ir.Successor{Block: bdef.ID, Case: ir.DefaultCase})
	b.SetBlock(bnone)
	b.Return()
	b.SetBlock(bdef)
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpBr, ir.OpReturn, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, bdef.ID, only(t, fn, ir.OpBr).Succs[0].Block)
}

// switchOverMemory builds a switch_enum_addr over args[1], preceded by the given writes.
func switchOverMemory(name string, writes func(b *ir.Builder, args []ir.ValueID)) (*ir.Function, *ir.Block, *ir.Block, []ir.ValueID) {
	fn, b, args := newFunc(name, params(tOpt, tOpt.Addr(), tObject))
	bnone := fn.AddBlock()
	bsome := fn.AddBlock()
	writes(b, args)
	b.SwitchEnumAddr(args[1], ir.Successor{Block: bnone.ID, Case: 0}, ir.Successor{Block: bsome.ID, Case: 1})
	b.SetBlock(bnone)
	b.Return()
	b.SetBlock(bsome)
	b.Return()
	return fn, bnone, bsome, args
}

func TestBranch_SwitchEnumAddrAfterStore(t *testing.T) {
	fn, bnone, bsome, args := switchOverMemory("switch_store", func(b *ir.Builder, args []ir.ValueID) {
		b.Store(args[0], args[1])
	})
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpStore, ir.OpSwitchEnum, ir.OpReturn, ir.OpReturn}, fn.Ops(), fn.Dump())
	sw := only(t, fn, ir.OpSwitchEnum)
	require.Equal(t, args[0], sw.Operand(0))
	require.Equal(t, []ir.Successor{{Block: bnone.ID, Case: 0}, {Block: bsome.ID, Case: 1}}, sw.Succs)
}

func TestBranch_SwitchEnumAddrAfterInject(t *testing.T) {
	fn, _, bsome, _ := switchOverMemory("switch_inject", func(b *ir.Builder, args []ir.ValueID) {
		b.InjectEnumAddr(args[1], 1)
		b.Retain(args[2])
	})
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpInjectEnumAddr, ir.OpRetain, ir.OpBr, ir.OpReturn, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, bsome.ID, only(t, fn, ir.OpBr).Succs[0].Block)
}

func TestBranch_SwitchEnumAddrBlockedByDebugValue(t *testing.T) {
	fn, _, _, _ := switchOverMemory("switch_debug", func(b *ir.Builder, args []ir.ValueID) {
		b.Store(args[0], args[1])
		b.DebugValue(args[1])
	})
	st := runCombiner(t, fn, Config{})
	require.False(t, st.Changed())
}

func TestBranch_CondFailOnZero(t *testing.T) {
	fn, b, _ := newFunc("cond_fail", nil)
	b.CondFail(b.IntegerLiteral(ir.Int1, 0).Result())
	b.CondFail(b.IntegerLiteral(ir.Int1, 1).Result())
	b.Return()
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpIntegerLiteral, ir.OpCondFail, ir.OpReturn}, fn.Ops(), fn.Dump())
}

/** Constant folding **/

func TestFold_Arith(t *testing.T) {
	fn, b, _ := newFunc("fold_arith", nil, ir.Int8)
	x := b.IntegerLiteral(ir.Int8, 100)
	r := b.Arith(ir.ArithAdd, x.Result(), x.Result())
	ret := b.Return(r.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpIntegerLiteral, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, int64(-56), fn.DefOf(ret.Operand(0)).Int)
}

func TestFold_CheckedOverflow(t *testing.T) {
	fn, b, _ := newFunc("fold_checked", nil, ir.Int8)
	x := b.IntegerLiteral(ir.Int8, 100)
	r := b.Checked(ir.ArithAdd, x.Result(), x.Result())
	v := b.TupleExtract(r.Result(), 0)
	o := b.TupleExtract(r.Result(), 1)
	cf := b.CondFail(o.Result())
	ret := b.Return(v.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpIntegerLiteral, ir.OpIntegerLiteral, ir.OpCondFail, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, int64(-56), fn.DefOf(ret.Operand(0)).Int)
	require.Equal(t, int64(1), fn.DefOf(cf.Operand(0)).Int)
	require.Equal(t, ir.Int1, fn.DefOf(cf.Operand(0)).Type)
}

func TestFold_CheckedNoOverflow(t *testing.T) {
	fn, b, _ := newFunc("fold_checked_ok", nil, ir.Int64)
	x := b.IntegerLiteral(ir.Int64, 6)
	y := b.IntegerLiteral(ir.Int64, 7)
	r := b.Checked(ir.ArithMul, x.Result(), y.Result())
	v := b.TupleExtract(r.Result(), 0)
	b.CondFail(b.TupleExtract(r.Result(), 1).Result())
	ret := b.Return(v.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpIntegerLiteral, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, int64(42), fn.DefOf(ret.Operand(0)).Int)
}

func TestFold_Evaluate(t *testing.T) {
	for _, tc := range []struct {
		op   ir.ArithOp
		bits int
		x, y int64
		v    int64
		ovf  bool
		fits bool
	}{
		{ir.ArithAdd, 8, 127, 1, -128, true, true},
		{ir.ArithAdd, 8, -100, 20, -80, false, true},
		{ir.ArithSub, 32, 5, 7, -2, false, true},
		{ir.ArithSub, 64, -9223372036854775808, 1, 9223372036854775807, true, true},
		{ir.ArithMul, 64, -9223372036854775808, -1, -9223372036854775808, true, true},
		{ir.ArithMul, 16, -300, 100, -30000, false, true},
		{ir.ArithMul, 1, -1, -1, -1, true, true},
		{ir.ArithAdd, 128, 1, 2, 3, false, true},
		{ir.ArithMul, 128, 1 << 62, 4, 0, false, false},
		{ir.ArithMul, 65, 1 << 62, 4, 0, true, false},
		{ir.ArithSub, 128, -9223372036854775808, 1, 0, false, false},
		{ir.ArithMul, 256, -9223372036854775808, -9223372036854775808, 0, false, false},
		{ir.ArithMul, 512, -2, 3, -6, false, true},
	} {
		v, ovf, fits := evaluate(tc.op, tc.bits, tc.x, tc.y)
		require.Equal(t, tc.ovf, ovf, "%s %d %d (i%d)", tc.op, tc.x, tc.y, tc.bits)
		require.Equal(t, tc.fits, fits, "%s %d %d (i%d)", tc.op, tc.x, tc.y, tc.bits)
		if fits {
			require.Equal(t, tc.v, v, "%s %d %d (i%d)", tc.op, tc.x, tc.y, tc.bits)
		}
	}
}

func TestFold_WideArith(t *testing.T) {
	i128 := ir.Int(128)
	fn, b, _ := newFunc("fold_wide", nil, i128, i128)
	x := b.IntegerLiteral(i128, 1<<62)
	y := b.IntegerLiteral(i128, 4)
	big := b.Arith(ir.ArithMul, x.Result(), y.Result())
	sum := b.Arith(ir.ArithAdd, y.Result(), y.Result())
	ret := b.Return(big.Result(), sum.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpIntegerLiteral, ir.OpIntegerLiteral, ir.OpBuiltinArith, ir.OpIntegerLiteral, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, big.ID, fn.DefOf(ret.Operand(0)).ID)
	require.Equal(t, int64(8), fn.DefOf(ret.Operand(1)).Int)
	require.Equal(t, i128, fn.DefOf(ret.Operand(1)).Type)
}

func TestFold_WideCheckedKeepsValue(t *testing.T) {
	i128 := ir.Int(128)
	fn, b, _ := newFunc("fold_wide_checked", nil, i128)
	x := b.IntegerLiteral(i128, 1<<62)
	y := b.IntegerLiteral(i128, 4)
	r := b.Checked(ir.ArithMul, x.Result(), y.Result())
	v := b.TupleExtract(r.Result(), 0)
	b.CondFail(b.TupleExtract(r.Result(), 1).Result())
	ret := b.Return(v.Result())
	runCombiner(t, fn, Config{})
	require.Equal(t, []ir.Op{ir.OpIntegerLiteral, ir.OpIntegerLiteral, ir.OpBuiltinChecked, ir.OpTupleExtract, ir.OpReturn}, fn.Ops(), fn.Dump())
	require.Equal(t, v.ID, fn.DefOf(ret.Operand(0)).ID)
}

/** Tracing **/

func TestCombiner_TracesRules(t *testing.T) {
	var buf bytes.Buffer
	fn, b, args := newFunc("traced", params(tObject))
	b.Retain(args[0])
	b.Release(args[0])
	b.Return()
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	runCombiner(t, fn, Config{Logger: log})
	require.Contains(t, buf.String(), "rule=release.pair")
	require.Contains(t, buf.String(), "func=traced")
}
