package ssa_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmssa/wasmssa/internal/ssa"
)

func TestVerifyAcceptsWellFormedFunction(t *testing.T) {
	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	c := b.AllocateInstruction()
	c.AsIconst32(1)
	b.InsertInstruction(c)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{c.Return()})
	b.InsertInstruction(ret)

	require.NoError(t, ssa.Verify(b))
}

func TestVerifyRejectsUnsealedBlock(t *testing.T) {
	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	// deliberately not sealed

	c := b.AllocateInstruction()
	c.AsIconst32(1)
	b.InsertInstruction(c)
	ret := b.AllocateInstruction()
	ret.AsReturn([]ssa.Value{c.Return()})
	b.InsertInstruction(ret)

	require.Error(t, ssa.Verify(b))
}

func TestVerifyRejectsNonTerminatedBlock(t *testing.T) {
	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	c := b.AllocateInstruction()
	c.AsIconst32(1)
	b.InsertInstruction(c)
	// no terminator follows

	require.Error(t, ssa.Verify(b))
}

func TestVerifyRejectsBranchArityMismatch(t *testing.T) {
	b := ssa.NewBuilder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)

	target := b.AllocateBasicBlock()
	target.AddParam(b, ssa.TypeI32) // expects one argument

	jmp := b.AllocateInstruction()
	jmp.AsJump(nil, target) // but none is passed
	b.InsertInstruction(jmp)
	b.Seal(entry)
	b.Seal(target)

	ret := b.AllocateInstruction()
	b.SetCurrentBlock(target)
	ret.AsReturn([]ssa.Value{target.Param(0)})
	b.InsertInstruction(ret)

	require.Error(t, ssa.Verify(b))
}
