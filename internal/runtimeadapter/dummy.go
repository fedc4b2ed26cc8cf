package runtimeadapter

import "github.com/wasmssa/wasmssa/internal/ssa"

// Dummy is a RuntimeAdapter that carries no backing state at all: reads
// return a sentinel constant, writes are no-ops, and call_indirect resolves
// to a sentinel callee with no bounds checking. It mirrors
// wasm2cretonne's DummyRuntime, whose purpose is letting translation of a
// function proceed (and be benchmarked, or have its generated SSA
// inspected) without wiring up an actual module instance.
type Dummy struct{}

// NewDummy returns a Dummy adapter. It holds no state, so the zero value
// would do just as well; NewDummy exists for symmetry with NewStandalone.
func NewDummy() Dummy { return Dummy{} }

const dummySentinel = ^uint64(0) // all-ones, i.e. -1 reinterpreted, per DummyRuntime's convention

// GlobalType implements RuntimeAdapter.GlobalType. Dummy tracks no real
// global declarations, so every global is reported as i32; callers needing
// other types should use Standalone instead.
func (Dummy) GlobalType(uint32) ssa.Type { return ssa.TypeI32 }

// GetGlobal always returns typ's all-ones bit pattern, never the global's
// real value.
func (Dummy) GetGlobal(b ssa.Builder, _ uint32, typ ssa.Type) ssa.Value {
	instr := b.AllocateInstruction()
	switch typ {
	case ssa.TypeI32:
		instr.AsIconst32(uint32(dummySentinel))
	case ssa.TypeI64:
		instr.AsIconst64(dummySentinel)
	case ssa.TypeF32:
		instr.AsF32const(-1)
	case ssa.TypeF64:
		instr.AsF64const(-1)
	default:
		panic("Dummy.GetGlobal: unsupported type")
	}
	b.InsertInstruction(instr)
	return instr.Return()
}

// SetGlobal does nothing.
func (Dummy) SetGlobal(ssa.Builder, uint32, ssa.Value) {}

// MemoryAddress performs no bounds check and simply adds offset to addr,
// unlike Standalone.
func (Dummy) MemoryAddress(b ssa.Builder, addr ssa.Value, offset uint32, _ byte) ssa.Value {
	if offset == 0 {
		return addr
	}
	off := b.AllocateInstruction()
	off.AsIconst32(offset)
	b.InsertInstruction(off)
	add := b.AllocateInstruction()
	add.AsIadd(addr, off.Return())
	b.InsertInstruction(add)
	return add.Return()
}

// MemorySize always reports the sentinel size, matching
// translate_current_memory's `iconst(I32, -1)`.
func (Dummy) MemorySize(b ssa.Builder) ssa.Value {
	instr := b.AllocateInstruction()
	instr.AsIconst32(uint32(dummySentinel))
	b.InsertInstruction(instr)
	return instr.Return()
}

// MemoryGrow does nothing and returns the same sentinel MemorySize does.
func (d Dummy) MemoryGrow(b ssa.Builder, _ ssa.Value) ssa.Value { return d.MemorySize(b) }

// CallIndirect performs no table lookup or bounds check; it resolves every
// call_indirect to the same sentinel callee address.
func (Dummy) CallIndirect(b ssa.Builder, _, _ uint32, _ ssa.Value, _ *ssa.Signature) ssa.Value {
	instr := b.AllocateInstruction()
	instr.AsIconst64(dummySentinel)
	b.InsertInstruction(instr)
	return instr.Return()
}
