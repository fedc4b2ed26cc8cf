package interp

import (
	"unsafe"

	"github.com/wasmssa/wasmssa/internal/ssa"
)

// uintptrOf and {load,store}At are the sole place outside
// runtimeadapter.Standalone that treats an SSA i64 value as a real pointer.
// Standalone's own doc comment names this interpreter as the one safe
// consumer of that convention: MemoryAddress and GetGlobal/SetGlobal always
// resolve to an in-bounds, correctly-aligned host address before an
// Iconst64 carrying it reaches a Load/Store instruction.
func uintptrOf(bits uint64) unsafe.Pointer { return unsafe.Pointer(uintptr(bits)) }

// loadAt reads at most accessSize bytes (never more, to stay within
// MemoryAddress's bounds check) and zero/sign-extends per op.
func loadAt(addr unsafe.Pointer, op ssa.Opcode, resultType ssa.Type) uint64 {
	switch op {
	case ssa.OpcodeUload8:
		return uint64(*(*uint8)(addr))
	case ssa.OpcodeSload8:
		return uint64(int64(*(*int8)(addr)))
	case ssa.OpcodeUload16:
		return uint64(*(*uint16)(addr))
	case ssa.OpcodeSload16:
		return uint64(int64(*(*int16)(addr)))
	case ssa.OpcodeUload32:
		return uint64(*(*uint32)(addr))
	case ssa.OpcodeSload32:
		return uint64(int64(*(*int32)(addr)))
	default: // OpcodeLoad: a full-width, non-extending load; width is the
		// result type's, 4 bytes for i32/f32 and 8 for i64/f64.
		if resultType.Bits() == 32 {
			return uint64(*(*uint32)(addr))
		}
		return *(*uint64)(addr)
	}
}

// storeAt writes exactly as many bytes as op (and, for a full store,
// valueType) calls for.
func storeAt(addr unsafe.Pointer, value uint64, op ssa.Opcode, valueType ssa.Type) {
	switch op {
	case ssa.OpcodeIstore8:
		*(*uint8)(addr) = uint8(value)
	case ssa.OpcodeIstore16:
		*(*uint16)(addr) = uint16(value)
	case ssa.OpcodeIstore32:
		*(*uint32)(addr) = uint32(value)
	default: // OpcodeStore
		if valueType.Bits() == 32 {
			*(*uint32)(addr) = uint32(value)
		} else {
			*(*uint64)(addr) = value
		}
	}
}
