package interp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmssa/wasmssa/internal/interp"
	"github.com/wasmssa/wasmssa/internal/ssa"
)

// buildAddOne constructs, straight against ssa.Builder, a function of one
// i32 param that jumps into a second block carrying the param plus a
// constant 1 as a block argument, and returns that block's own formal
// param. This exercises Compile/Call's block-parameter binding directly,
// independent of internal/translator: the value read back inside the
// second block must be the real argument bound at the Jump, not some
// reconstructed stand-in.
func buildAddOne(b ssa.Builder) {
	entry := b.AllocateBasicBlock()
	x := entry.AddParam(b, ssa.TypeI32)
	b.SetCurrentBlock(entry)

	target := b.AllocateBasicBlock()
	sum := target.AddParam(b, ssa.TypeI32)

	one := b.AllocateInstruction()
	one.AsIconst32(1)
	b.InsertInstruction(one)

	add := b.AllocateInstruction()
	add.AsIadd(x, one.Return())
	b.InsertInstruction(add)

	jmp := b.AllocateInstruction()
	jmp.AsJump([]ssa.Value{add.Return()}, target)
	b.InsertInstruction(jmp)
	b.Seal(entry)
	b.Seal(target)

	b.SetCurrentBlock(target)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{sum})
	b.InsertInstruction(ret)
}

func TestCompileAndCallBindsBlockParams(t *testing.T) {
	b := ssa.NewBuilder()
	buildAddOne(b)
	fn := interp.Compile(b)
	require.Equal(t, 2, fn.BlockCount())

	mod := &interp.Module{Functions: map[uint32]*interp.Function{0: fn}}
	out, err := mod.Call(0, []uint64{41})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, out)
}

func TestCallUnknownFunctionErrors(t *testing.T) {
	mod := &interp.Module{Functions: map[uint32]*interp.Function{}}
	_, err := mod.Call(7, nil)
	require.Error(t, err)
}

// TestCompileReusesBuilderAcrossFunctions verifies a Function snapshot
// stays valid after the originating Builder is Reset and reused for a
// second, unrelated function, which is exactly how
// internal/translator.Translator drives a sequence of TranslateFunction
// calls against one shared Builder.
func TestCompileReusesBuilderAcrossFunctions(t *testing.T) {
	b := ssa.NewBuilder()
	buildAddOne(b)
	first := interp.Compile(b)

	b.Reset()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	c := b.AllocateInstruction()
	c.AsIconst32(99)
	b.InsertInstruction(c)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{c.Return()})
	b.InsertInstruction(ret)
	b.Seal(entry)
	second := interp.Compile(b)

	mod := &interp.Module{Functions: map[uint32]*interp.Function{0: first, 1: second}}

	out, err := mod.Call(0, []uint64{1})
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, out)

	out, err = mod.Call(1, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{99}, out)
}
