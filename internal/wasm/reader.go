package wasm

import (
	"bytes"
	"fmt"
)

// Operator is one decoded instruction from a function body's operator
// stream: an Opcode plus whichever immediate fields it carries. The
// Operator Dispatcher (internal/translator/dispatcher.go) consumes a stream
// of these one at a time, matching spec.md §4.1.
type Operator struct {
	Op Opcode

	// LocalIndex backs local.get/local.set/local.tee.
	LocalIndex uint32
	// GlobalIndex backs global.get/global.set.
	GlobalIndex uint32
	// FuncIndex backs call.
	FuncIndex uint32
	// TypeIndex backs call_indirect.
	TypeIndex uint32
	// TableIndex backs call_indirect (always 0 in the MVP, kept for forward
	// compatibility with the binary format's encoding).
	TableIndex uint32

	// MemArg carries a memory instruction's alignment hint and offset.
	MemArgAlign  uint32
	MemArgOffset uint32

	// BlockType backs block/loop/if.
	BlockType BlockType

	// RelativeDepth backs br/br_if, counted outward from the innermost
	// enclosing block (spec.md §4.2).
	RelativeDepth uint32

	// TableTargets/TableDefault back br_table: one relative depth per
	// jump-table entry, plus the mandatory default.
	TableTargets []uint32
	TableDefault uint32

	I32Const int32
	I64Const int64
	F32Const uint32 // raw IEEE 754 bits
	F64Const uint64 // raw IEEE 754 bits
}

// OperatorReader pulls one Operator at a time from a function body's raw
// bytes, the sole interface the Operator Dispatcher uses to consume wasm
// bytecode (spec.md §4.1). It tracks no control-flow state of its own: that
// is entirely the Control Engine's responsibility.
type OperatorReader struct {
	m   *Module
	r   *bytes.Reader
	pos int
}

// NewOperatorReader wraps one function's body bytes for sequential reading.
func NewOperatorReader(m *Module, body []byte) *OperatorReader {
	return &OperatorReader{m: m, r: bytes.NewReader(body)}
}

// Done reports whether the stream has been fully consumed.
func (r *OperatorReader) Done() bool { return r.r.Len() == 0 }

// Read decodes the next Operator. Returns io.EOF-shaped errors from the
// underlying byte stream verbatim; the caller (internal/translator) wraps
// them as TranslationError{Kind: MalformedStream}.
func (r *OperatorReader) Read() (Operator, error) {
	opByte, err := r.r.ReadByte()
	if err != nil {
		return Operator{}, err
	}
	op := Opcode(opByte)
	o := Operator{Op: op}

	switch op {
	case OpBlock, OpLoop, OpIf:
		raw, err := decodeInt64(r.r, 33)
		if err != nil {
			return o, err
		}
		bt, err := DecodeBlockType(r.m, raw)
		if err != nil {
			return o, err
		}
		o.BlockType = bt

	case OpBr, OpBrIf:
		o.RelativeDepth, err = decodeUint32(r.r)

	case OpBrTable:
		count, cerr := decodeUint32(r.r)
		if cerr != nil {
			return o, cerr
		}
		o.TableTargets = make([]uint32, count)
		for i := range o.TableTargets {
			if o.TableTargets[i], err = decodeUint32(r.r); err != nil {
				return o, err
			}
		}
		o.TableDefault, err = decodeUint32(r.r)

	case OpCall:
		o.FuncIndex, err = decodeUint32(r.r)

	case OpCallIndirect:
		if o.TypeIndex, err = decodeUint32(r.r); err != nil {
			return o, err
		}
		o.TableIndex, err = decodeUint32(r.r)

	case OpLocalGet, OpLocalSet, OpLocalTee:
		o.LocalIndex, err = decodeUint32(r.r)

	case OpGlobalGet, OpGlobalSet:
		o.GlobalIndex, err = decodeUint32(r.r)

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		if o.MemArgAlign, err = decodeUint32(r.r); err != nil {
			return o, err
		}
		o.MemArgOffset, err = decodeUint32(r.r)

	case OpMemorySize, OpMemoryGrow:
		_, err = r.r.ReadByte() // reserved byte, must be 0x00 in the MVP

	case OpI32Const:
		o.I32Const, err = decodeInt32(r.r)

	case OpI64Const:
		o.I64Const, err = decodeInt64(r.r, 64)

	case OpF32Const:
		var buf [4]byte
		if _, err = r.r.Read(buf[:]); err == nil {
			o.F32Const = uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		}

	case OpF64Const:
		var buf [8]byte
		if _, err = r.r.Read(buf[:]); err == nil {
			for i, b := range buf {
				o.F64Const |= uint64(b) << (8 * i)
			}
		}

	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect,
		OpI32Eqz, OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU, OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU,
		OpI64Eqz, OpI64Eq, OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU, OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU,
		OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge,
		OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge,
		OpI32Clz, OpI32Ctz, OpI32Popcnt, OpI32Add, OpI32Sub, OpI32Mul, OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU,
		OpI32And, OpI32Or, OpI32Xor, OpI32Shl, OpI32ShrS, OpI32ShrU, OpI32Rotl, OpI32Rotr,
		OpI64Clz, OpI64Ctz, OpI64Popcnt, OpI64Add, OpI64Sub, OpI64Mul, OpI64DivS, OpI64DivU, OpI64RemS, OpI64RemU,
		OpI64And, OpI64Or, OpI64Xor, OpI64Shl, OpI64ShrS, OpI64ShrU, OpI64Rotl, OpI64Rotr,
		OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt,
		OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign,
		OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt,
		OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign,
		OpI32WrapI64, OpI32TruncF32S, OpI32TruncF32U, OpI32TruncF64S, OpI32TruncF64U,
		OpI64ExtendI32S, OpI64ExtendI32U, OpI64TruncF32S, OpI64TruncF32U, OpI64TruncF64S, OpI64TruncF64U,
		OpF32ConvertI32S, OpF32ConvertI32U, OpF32ConvertI64S, OpF32ConvertI64U, OpF32DemoteF64,
		OpF64ConvertI32S, OpF64ConvertI32U, OpF64ConvertI64S, OpF64ConvertI64U, OpF64PromoteF32,
		OpI32ReinterpretF32, OpI64ReinterpretF64, OpF32ReinterpretI32, OpF64ReinterpretI64:
		// no immediates

	default:
		return o, fmt.Errorf("unsupported opcode 0x%02x", byte(op))
	}
	return o, err
}
