package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmssa/wasmssa/internal/interp"
	"github.com/wasmssa/wasmssa/internal/ssa"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

func TestToSSAType(t *testing.T) {
	require.Equal(t, ssa.TypeI32, toSSAType(wasm.ValueTypeI32))
	require.Equal(t, ssa.TypeI64, toSSAType(wasm.ValueTypeI64))
	require.Equal(t, ssa.TypeF32, toSSAType(wasm.ValueTypeF32))
	require.Equal(t, ssa.TypeF64, toSSAType(wasm.ValueTypeF64))
}

func TestNewStandaloneDefaultsUnboundedMemory(t *testing.T) {
	inst := &wasm.Instantiation{MemoryInitialPages: 1, TableSize: 2}
	s := newStandalone(inst)
	require.NotNil(t, s)
}

func TestNewStandaloneWiresGlobalsAndTable(t *testing.T) {
	inst := &wasm.Instantiation{
		GlobalTypes:   []wasm.ValueType{wasm.ValueTypeI32},
		GlobalInits:   []uint64{7},
		TableSize:     2,
		TableElements: map[uint32]uint32{0: 5},
	}
	s := newStandalone(inst)

	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	b.Seal(entry)
	got := s.GetGlobal(b, 0, ssa.TypeI32)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{got})
	b.InsertInstruction(ret)

	fn := interp.Compile(b)
	mod := &interp.Module{Functions: map[uint32]*interp.Function{0: fn}}
	out, err := mod.Call(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, out)

	// Table slot 0 holds the function index its element entry placed there.
	tb := ssa.NewBuilder()
	tentry := tb.AllocateBasicBlock()
	tb.SetCurrentBlock(tentry)
	tb.Seal(tentry)
	slot := tb.AllocateInstruction()
	slot.AsIconst32(0)
	tb.InsertInstruction(slot)
	callee := s.CallIndirect(tb, 0, 0, slot.Return(), &ssa.Signature{})
	tret := tb.AllocateInstruction()
	tret.AsReturn([]ssa.Value{callee})
	tb.InsertInstruction(tret)

	tmod := &interp.Module{Functions: map[uint32]*interp.Function{0: interp.Compile(tb)}}
	out, err = tmod.Call(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, out)
}
