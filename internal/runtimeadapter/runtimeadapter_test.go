package runtimeadapter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmssa/wasmssa/internal/interp"
	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/ssa"
)

// buildAndRun compiles whatever build left on b into a single-function
// interp.Module and calls it, used by every test below to exercise a
// RuntimeAdapter method the way internal/translator actually calls it:
// against a live Builder, then executed rather than inspected.
func buildAndRun(t *testing.T, b ssa.Builder, args ...uint64) ([]uint64, error) {
	t.Helper()
	fn := interp.Compile(b)
	mod := &interp.Module{Functions: map[uint32]*interp.Function{0: fn}}
	return mod.Call(0, args)
}

func TestStandaloneGlobalRoundTrip(t *testing.T) {
	s := runtimeadapter.NewStandalone([]ssa.Type{ssa.TypeI32}, 0, 0, 0)

	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	c := b.AllocateInstruction()
	c.AsIconst32(123)
	b.InsertInstruction(c)
	s.SetGlobal(b, 0, c.Return())

	got := s.GetGlobal(b, 0, ssa.TypeI32)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{got})
	b.InsertInstruction(ret)

	out, err := buildAndRun(t, b)
	require.NoError(t, err)
	require.Equal(t, []uint64{123}, out)
}

func TestStandaloneMemoryAddressInBounds(t *testing.T) {
	s := runtimeadapter.NewStandalone(nil, 1, 1, 0)

	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	addr := entry.AddParam(b, ssa.TypeI32)
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	hostAddr := s.MemoryAddress(b, addr, 0, 4)
	load := b.AllocateInstruction()
	load.AsLoad(hostAddr, 0, ssa.TypeI32)
	b.InsertInstruction(load)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{load.Return()})
	b.InsertInstruction(ret)

	out, err := buildAndRun(t, b, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, out) // freshly allocated memory reads zero
}

func TestStandaloneMemoryAddressOutOfBoundsTraps(t *testing.T) {
	s := runtimeadapter.NewStandalone(nil, 1, 1, 0)

	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	addr := entry.AddParam(b, ssa.TypeI32)
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	hostAddr := s.MemoryAddress(b, addr, 0, 4)
	load := b.AllocateInstruction()
	load.AsLoad(hostAddr, 0, ssa.TypeI32)
	b.InsertInstruction(load)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{load.Return()})
	b.InsertInstruction(ret)

	_, err := buildAndRun(t, b, 65536) // one page's worth of bytes, entirely out of range
	require.Error(t, err)
}

func TestStandaloneMemoryGrowReturnsPreviousSize(t *testing.T) {
	s := runtimeadapter.NewStandalone(nil, 2, 10, 0)

	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	delta := b.AllocateInstruction()
	delta.AsIconst32(3)
	b.InsertInstruction(delta)

	grown := s.MemoryGrow(b, delta.Return())
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{grown})
	b.InsertInstruction(ret)

	out, err := buildAndRun(t, b)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, out)
}

func TestStandaloneCallIndirectOutOfBoundsTraps(t *testing.T) {
	s := runtimeadapter.NewStandalone(nil, 0, 0, 4)
	s.SetTableFunction(1, 7)

	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	idx := entry.AddParam(b, ssa.TypeI32)
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	callee := s.CallIndirect(b, 0, 0, idx, &ssa.Signature{})
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{callee})
	b.InsertInstruction(ret)

	_, err := buildAndRun(t, b, 9) // past the 4-slot table
	require.Error(t, err)
}

func TestDummyReportsSentinelGlobal(t *testing.T) {
	d := runtimeadapter.NewDummy()

	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	got := d.GetGlobal(b, 0, ssa.TypeI32)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{got})
	b.InsertInstruction(ret)

	out, err := buildAndRun(t, b)
	require.NoError(t, err)
	require.Equal(t, []uint64{uint64(^uint32(0))}, out)
}
