// Package runtimeadapter defines the seam between the translator and
// whatever owns a module's mutable state at run time: globals, linear
// memory, and tables. The translator never reasons about how these are
// stored; it only calls RuntimeAdapter, which emits whatever SSA is needed
// and returns the resulting Values (spec.md §6).
package runtimeadapter

import "github.com/wasmssa/wasmssa/internal/ssa"

// RuntimeAdapter is implemented once per embedding environment. Standalone
// and Dummy (this package) are reference implementations; a production
// embedder substitutes its own, exactly as the native-code executor and I/O
// are external collaborators per spec.md's Non-goals.
type RuntimeAdapter interface {
	// GlobalType reports globalIdx's value type. The wasm module data model
	// (internal/wasm) carries no global section of its own — RuntimeAdapter
	// is the sole authority on globals per this package's doc comment —so
	// the translator asks here rather than consulting the module.
	GlobalType(globalIdx uint32) ssa.Type

	// GetGlobal emits whatever instructions are needed to read globalIdx's
	// current value into an ssa.Value of the given type.
	GetGlobal(b ssa.Builder, globalIdx uint32, typ ssa.Type) ssa.Value

	// SetGlobal emits the instructions storing value into globalIdx.
	SetGlobal(b ssa.Builder, globalIdx uint32, value ssa.Value)

	// MemoryAddress emits the instructions computing and bounds-checking
	// the effective host address for a load/store of accessSize bytes at
	// wasm address addr+offset, trapping (via a synthesized trap block) if
	// out of range. The returned Value is the base address Load/Store
	// instructions should use, with offset folded in if the adapter
	// chooses to.
	MemoryAddress(b ssa.Builder, addr ssa.Value, offset uint32, accessSize byte) ssa.Value

	// MemorySize emits `memory.size`.
	MemorySize(b ssa.Builder) ssa.Value

	// MemoryGrow emits `memory.grow`.
	MemoryGrow(b ssa.Builder, deltaPages ssa.Value) ssa.Value

	// CallIndirect emits the table lookup for `call_indirect` plus whatever
	// checks the implementation performs: Standalone traps on an index past
	// the table's end, Dummy checks nothing, and neither checks the callee's
	// signature against sig. The returned Value is the resolved callee,
	// suitable as Instruction.AsCallIndirect's first argument.
	CallIndirect(b ssa.Builder, tableIdx, typeIdx uint32, index ssa.Value, sig *ssa.Signature) ssa.Value
}

// trapBlock allocates a fresh, immediately-sealed block containing a single
// Trap instruction; every RuntimeAdapter implementation in this package
// uses it for its bounds-check failure arms, mirroring the
// `trap_ebb`/`ebb0` pattern in wasm2cretonne's standalone runtime.
func trapBlock(b ssa.Builder) ssa.BasicBlock {
	blk := b.AllocateBasicBlock()
	b.Seal(blk)
	cur := b.CurrentBlock()
	b.SetCurrentBlock(blk)
	trap := b.AllocateInstruction()
	trap.AsTrap()
	b.InsertInstruction(trap)
	b.SetCurrentBlock(cur)
	return blk
}
