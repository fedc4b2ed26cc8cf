package runtimeadapter

import (
	"math"
	"unsafe"

	"github.com/wasmssa/wasmssa/internal/ssa"
)

// Standalone is a reference RuntimeAdapter that backs globals, one linear
// memory and one table with plain Go slices owned by the process, exactly
// as wasm2cretonne's StandaloneRuntime does. It exists for tests and
// examples, not production embedding: like its ancestor, it encodes raw
// slice base addresses as SSA i64 constants for Load/Store to dereference,
// which only internal/interp (this repo's own IR interpreter) knows how to
// execute safely.
type Standalone struct {
	globalTypes []ssa.Type
	globals     []uint64

	memory []byte
	// memoryMaxPages is 0 for "unbounded" (MVP default), matching
	// standalone.rs's Memory.maximum option.
	memoryMaxPages uint32

	table []uint32 // table[i] is the function index at slot i, or sentinel tableSlotTrap
}

const tableSlotTrap = math.MaxUint32

// NewStandalone allocates a Standalone runtime with globalTypes.Len()
// globals (initialized to zero), memoryInitialPages pages of linear memory,
// and a table of tableSize slots (all initially holding the tableSlotTrap
// sentinel, after declare_table's TableElement::Trap default; CallIndirect
// does not check for it and returns the sentinel as the callee).
func NewStandalone(globalTypes []ssa.Type, memoryInitialPages, memoryMaxPages, tableSize uint32) *Standalone {
	s := &Standalone{
		globalTypes:    globalTypes,
		globals:        make([]uint64, len(globalTypes)),
		memory:         make([]byte, int(memoryInitialPages)*memoryPageSize),
		memoryMaxPages: memoryMaxPages,
		table:          make([]uint32, tableSize),
	}
	for i := range s.table {
		s.table[i] = tableSlotTrap
	}
	return s
}

const memoryPageSize = 65536

// SetGlobalInit sets globalIdx's initial value, used by moduledriver before
// any function runs (standalone.rs's instantiate() global-init switch).
func (s *Standalone) SetGlobalInit(globalIdx uint32, bits uint64) { s.globals[globalIdx] = bits }

// SetTableFunction populates table slot i with a function index, used by
// moduledriver when processing the module's element section.
func (s *Standalone) SetTableFunction(slot int, funcIdx uint32) { s.table[slot] = funcIdx }

func (s *Standalone) iconstPtr(b ssa.Builder, p unsafe.Pointer) ssa.Value {
	instr := b.AllocateInstruction()
	instr.AsIconst64(uint64(uintptr(p)))
	b.InsertInstruction(instr)
	return instr.Return()
}

// GlobalType implements RuntimeAdapter.GlobalType.
func (s *Standalone) GlobalType(globalIdx uint32) ssa.Type { return s.globalTypes[globalIdx] }

// GetGlobal implements RuntimeAdapter.GetGlobal.
func (s *Standalone) GetGlobal(b ssa.Builder, globalIdx uint32, typ ssa.Type) ssa.Value {
	addr := s.iconstPtr(b, unsafe.Pointer(&s.globals[globalIdx]))
	instr := b.AllocateInstruction()
	instr.AsLoad(addr, 0, typ)
	b.InsertInstruction(instr)
	return instr.Return()
}

// SetGlobal implements RuntimeAdapter.SetGlobal.
func (s *Standalone) SetGlobal(b ssa.Builder, globalIdx uint32, value ssa.Value) {
	addr := s.iconstPtr(b, unsafe.Pointer(&s.globals[globalIdx]))
	instr := b.AllocateInstruction()
	instr.AsStore(value, addr, 0)
	b.InsertInstruction(instr)
}

// MemoryAddress implements RuntimeAdapter.MemoryAddress: bounds-checks
// addr+offset+accessSize against the current memory length, trapping if
// out of range, then returns the host address of the access (memory base +
// addr + offset), so Load/Store use it with a zero offset of their own.
func (s *Standalone) MemoryAddress(b ssa.Builder, addr ssa.Value, offset uint32, accessSize byte) ssa.Value {
	trap := trapBlock(b)
	cont := b.AllocateBasicBlock()

	// An access that cannot fit in memory at all traps for every addr.
	cond := ssa.IntegerCmpCondUnsignedGreaterThan
	limitVal := int64(len(s.memory)) - int64(accessSize) - int64(offset)
	if limitVal < 0 {
		limitVal, cond = 0, ssa.IntegerCmpCondUnsignedGreaterThanOrEqual
	}
	limit := b.AllocateInstruction()
	limit.AsIconst32(uint32(limitVal))
	b.InsertInstruction(limit)

	cmp := b.AllocateInstruction()
	cmp.AsIcmp(addr, limit.Return(), cond)
	b.InsertInstruction(cmp)

	brnz := b.AllocateInstruction()
	brnz.AsBrnz(cmp.Return(), nil, trap)
	b.InsertInstruction(brnz)
	jmp := b.AllocateInstruction()
	jmp.AsJump(nil, cont)
	b.InsertInstruction(jmp)

	b.Seal(cont)
	b.SetCurrentBlock(cont)

	var hostBase uint64
	if len(s.memory) > 0 {
		hostBase = uint64(uintptr(unsafe.Pointer(&s.memory[0])))
	}
	base := b.AllocateInstruction()
	base.AsIconst64(hostBase + uint64(offset))
	b.InsertInstruction(base)
	add := b.AllocateInstruction()
	add.AsIadd(base.Return(), addr)
	b.InsertInstruction(add)
	return add.Return()
}

// MemorySize implements RuntimeAdapter.MemorySize.
func (s *Standalone) MemorySize(b ssa.Builder) ssa.Value {
	instr := b.AllocateInstruction()
	instr.AsIconst32(uint32(len(s.memory) / memoryPageSize))
	b.InsertInstruction(instr)
	return instr.Return()
}

// MemoryGrow implements RuntimeAdapter.MemoryGrow. Translation has no way
// to grow s.memory itself — that would invalidate every host address
// already folded into earlier Iconst64 constants for this and any other
// in-flight function — so, like wasm2cretonne's standalone.rs (which
// leaves grow_memory unimplemented), this only surfaces the previous page
// count per wasm semantics. A RuntimeAdapter meant to actually execute
// memory.grow needs either to reserve its maximum up front or to grow
// through an indirection translation doesn't bake into a constant;
// internal/interp's direct pointer dereferences, documented in
// memunsafe.go, only work because Standalone's memory never moves once a
// module starts executing.
func (s *Standalone) MemoryGrow(b ssa.Builder, deltaPages ssa.Value) ssa.Value {
	instr := b.AllocateInstruction()
	instr.AsIconst32(uint32(len(s.memory) / memoryPageSize))
	b.InsertInstruction(instr)
	return instr.Return()
}

// CallIndirect implements RuntimeAdapter.CallIndirect, following
// standalone.rs's translate_call_indirect: two unsigned-range checks
// (index < 0 is impossible for an already-unsigned i32, so only the upper
// bound is checked here) into a shared trap block, then a table load. The
// callee's signature is not checked against sig or typeIdx.
func (s *Standalone) CallIndirect(b ssa.Builder, tableIdx, typeIdx uint32, index ssa.Value, sig *ssa.Signature) ssa.Value {
	trap := trapBlock(b)
	cont := b.AllocateBasicBlock()

	size := b.AllocateInstruction()
	size.AsIconst32(uint32(len(s.table)))
	b.InsertInstruction(size)

	cmp := b.AllocateInstruction()
	cmp.AsIcmp(index, size.Return(), ssa.IntegerCmpCondUnsignedGreaterThanOrEqual)
	b.InsertInstruction(cmp)

	brnz := b.AllocateInstruction()
	brnz.AsBrnz(cmp.Return(), nil, trap)
	b.InsertInstruction(brnz)
	jmp := b.AllocateInstruction()
	jmp.AsJump(nil, cont)
	b.InsertInstruction(jmp)

	b.Seal(cont)
	b.SetCurrentBlock(cont)

	base := s.iconstPtr(b, unsafe.Pointer(&s.table[0]))
	four := b.AllocateInstruction()
	four.AsIconst32(4)
	b.InsertInstruction(four)
	scaled := b.AllocateInstruction()
	scaled.AsImul(index, four.Return())
	b.InsertInstruction(scaled)
	entryAddr := b.AllocateInstruction()
	entryAddr.AsIadd(base, scaled.Return())
	b.InsertInstruction(entryAddr)
	entry := b.AllocateInstruction()
	entry.AsLoad(entryAddr.Return(), 0, ssa.TypeI32)
	b.InsertInstruction(entry)
	return entry.Return()
}
