package ssa

import (
	"fmt"
	"strings"
)

// Opcode identifies the operation an Instruction performs. Naming follows
// the cranelift/wazero convention (see wazevo/ssa/instructions.go in the
// retrieved pack) trimmed to the subset spec.md §4.3 requires.
type Opcode uint32

const (
	OpcodeInvalid Opcode = iota

	// Control flow.
	OpcodeJump
	OpcodeBrz
	OpcodeBrnz
	OpcodeBrTable
	OpcodeReturn
	OpcodeTrap
	OpcodeCall
	OpcodeCallIndirect

	// Constants.
	OpcodeIconst32
	OpcodeIconst64
	OpcodeF32const
	OpcodeF64const

	// Integer arithmetic.
	OpcodeIadd
	OpcodeIsub
	OpcodeImul
	OpcodeSdiv
	OpcodeUdiv
	OpcodeSrem
	OpcodeUrem
	OpcodeBand
	OpcodeBor
	OpcodeBxor
	OpcodeBnot
	OpcodeIshl
	OpcodeSshr
	OpcodeUshr
	OpcodeClz
	OpcodeCtz
	OpcodePopcnt
	OpcodeIcmp
	OpcodeBoolToInt

	// Float arithmetic.
	OpcodeFadd
	OpcodeFsub
	OpcodeFmul
	OpcodeFdiv
	OpcodeFmin
	OpcodeFmax
	OpcodeFneg
	OpcodeFabs
	OpcodeSqrt
	OpcodeCeil
	OpcodeFloor
	OpcodeFtrunc
	OpcodeNearest
	OpcodeCopysign
	OpcodeFcmp

	// Conversions.
	OpcodeSExtend
	OpcodeUExtend
	OpcodeIreduce
	OpcodeFcvtToSint
	OpcodeFcvtToUint
	OpcodeFcvtFromSint
	OpcodeFcvtFromUint
	OpcodeFpromote
	OpcodeFdemote
	OpcodeBitcast

	// Memory.
	OpcodeLoad
	OpcodeUload8
	OpcodeSload8
	OpcodeUload16
	OpcodeSload16
	OpcodeUload32
	OpcodeSload32
	OpcodeStore
	OpcodeIstore8
	OpcodeIstore16
	OpcodeIstore32

	// Misc.
	OpcodeSelect
)

var opcodeNames = map[Opcode]string{
	OpcodeJump: "jump", OpcodeBrz: "brz", OpcodeBrnz: "brnz", OpcodeBrTable: "br_table",
	OpcodeReturn: "return", OpcodeTrap: "trap", OpcodeCall: "call", OpcodeCallIndirect: "call_indirect",
	OpcodeIconst32: "iconst32", OpcodeIconst64: "iconst64", OpcodeF32const: "f32const", OpcodeF64const: "f64const",
	OpcodeIadd: "iadd", OpcodeIsub: "isub", OpcodeImul: "imul", OpcodeSdiv: "sdiv", OpcodeUdiv: "udiv",
	OpcodeSrem: "srem", OpcodeUrem: "urem", OpcodeBand: "band", OpcodeBor: "bor", OpcodeBxor: "bxor",
	OpcodeBnot: "bnot", OpcodeIshl: "ishl", OpcodeSshr: "sshr", OpcodeUshr: "ushr",
	OpcodeClz: "clz", OpcodeCtz: "ctz", OpcodePopcnt: "popcnt", OpcodeIcmp: "icmp", OpcodeBoolToInt: "bool_to_int",
	OpcodeFadd: "fadd", OpcodeFsub: "fsub", OpcodeFmul: "fmul", OpcodeFdiv: "fdiv",
	OpcodeFmin: "fmin", OpcodeFmax: "fmax", OpcodeFneg: "fneg", OpcodeFabs: "fabs", OpcodeSqrt: "sqrt",
	OpcodeCeil: "ceil", OpcodeFloor: "floor", OpcodeFtrunc: "trunc", OpcodeNearest: "nearest",
	OpcodeCopysign: "copysign", OpcodeFcmp: "fcmp",
	OpcodeSExtend: "sextend", OpcodeUExtend: "uextend", OpcodeIreduce: "ireduce",
	OpcodeFcvtToSint: "fcvt_to_sint", OpcodeFcvtToUint: "fcvt_to_uint",
	OpcodeFcvtFromSint: "fcvt_from_sint", OpcodeFcvtFromUint: "fcvt_from_uint",
	OpcodeFpromote: "fpromote", OpcodeFdemote: "fdemote", OpcodeBitcast: "bitcast",
	OpcodeLoad: "load", OpcodeUload8: "uload8", OpcodeSload8: "sload8", OpcodeUload16: "uload16",
	OpcodeSload16: "sload16", OpcodeUload32: "uload32", OpcodeSload32: "sload32",
	OpcodeStore: "store", OpcodeIstore8: "istore8", OpcodeIstore16: "istore16", OpcodeIstore32: "istore32",
	OpcodeSelect: "select",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("opcode(%d)", o)
}

// Instruction is a single SSA instruction. Go has no tagged union, so (as in
// the teacher's wazevo/ssa package) all instructions share one flattened
// struct; which fields are meaningful is determined by opcode.
type Instruction struct {
	opcode Opcode

	// v/v2 are the primary operand values (e.g. binary op lhs/rhs; load
	// address; store value-then-address is v=value, v2=address).
	v, v2 Value
	// vs holds variadic operands: branch arguments, call arguments.
	vs []Value

	// u64 carries an immediate payload: integer constant bits, or the
	// float constant bits (via math.Float{32,64}bits).
	u64 uint64
	// offset is a memory operator's immediate byte offset.
	offset uint32
	// fromBits/toBits describe extend/reduce operand and result widths.
	fromBits, toBits byte
	// signed marks sign- vs zero-extension, and signed vs unsigned
	// division/remainder/conversion variants.
	signed bool

	icmpCond IntegerCmpCond
	fcmpCond FloatCmpCond

	typ Type

	// blk is the sole branch target for Jump/Brz/Brnz.
	blk BasicBlock
	// targets holds the br_table jump-table entries (spec.md §4.2);
	// targets[i] is the destination for table index i.
	targets []BasicBlock

	sig     *Signature
	funcRef FuncRef
	// indirectCallee holds the callee address Value for CallIndirect.
	indirectCallee Value

	rValue  Value
	rValues []Value

	prev, next *Instruction
}

// Prev/Next expose the block's doubly linked instruction list.
func (i *Instruction) Prev() *Instruction { return i.prev }
func (i *Instruction) Next() *Instruction { return i.next }

// Opcode returns this instruction's Opcode.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Return returns this instruction's (first) result Value; for an
// instruction with no result it is an invalid Value (Valid reports false).
// Further results of a
// Call/CallIndirect come from Returns.
func (i *Instruction) Return() Value { return i.rValue }

// Returns returns the (first, rest) results of a Call/CallIndirect, matching
// the pattern spec.md §4.3 describes for "push all result values".
func (i *Instruction) Returns() (Value, []Value) { return i.rValue, i.rValues }

// --- constant/arithmetic constructors -------------------------------------------------

func (i *Instruction) AsIconst32(v uint32) { i.opcode = OpcodeIconst32; i.u64 = uint64(v); i.typ = TypeI32 }
func (i *Instruction) AsIconst64(v uint64) { i.opcode = OpcodeIconst64; i.u64 = v; i.typ = TypeI64 }
func (i *Instruction) AsF32const(v float32) {
	i.opcode = OpcodeF32const
	i.u64 = uint64(f32bits(v))
	i.typ = TypeF32
}
func (i *Instruction) AsF64const(v float64) {
	i.opcode = OpcodeF64const
	i.u64 = f64bits(v)
	i.typ = TypeF64
}

func (i *Instruction) asBinary(op Opcode, x, y Value) {
	i.opcode = op
	i.v, i.v2 = x, y
	i.typ = x.Type()
}

func (i *Instruction) AsIadd(x, y Value)  { i.asBinary(OpcodeIadd, x, y) }
func (i *Instruction) AsIsub(x, y Value)  { i.asBinary(OpcodeIsub, x, y) }
func (i *Instruction) AsImul(x, y Value)  { i.asBinary(OpcodeImul, x, y) }
func (i *Instruction) AsBand(x, y Value)  { i.asBinary(OpcodeBand, x, y) }
func (i *Instruction) AsBor(x, y Value)   { i.asBinary(OpcodeBor, x, y) }
func (i *Instruction) AsBxor(x, y Value)  { i.asBinary(OpcodeBxor, x, y) }
func (i *Instruction) AsIshl(x, y Value)  { i.asBinary(OpcodeIshl, x, y) }
func (i *Instruction) AsSshr(x, y Value)  { i.asBinary(OpcodeSshr, x, y) }
func (i *Instruction) AsUshr(x, y Value)  { i.asBinary(OpcodeUshr, x, y) }
func (i *Instruction) AsFadd(x, y Value)  { i.asBinary(OpcodeFadd, x, y) }
func (i *Instruction) AsFsub(x, y Value)  { i.asBinary(OpcodeFsub, x, y) }
func (i *Instruction) AsFmul(x, y Value)  { i.asBinary(OpcodeFmul, x, y) }
func (i *Instruction) AsFdiv(x, y Value)  { i.asBinary(OpcodeFdiv, x, y) }
func (i *Instruction) AsFmin(x, y Value)  { i.asBinary(OpcodeFmin, x, y) }
func (i *Instruction) AsFmax(x, y Value)  { i.asBinary(OpcodeFmax, x, y) }
func (i *Instruction) AsCopysign(x, y Value) { i.asBinary(OpcodeCopysign, x, y) }

func (i *Instruction) AsSdiv(x, y Value) { i.asBinary(OpcodeSdiv, x, y); i.signed = true }
func (i *Instruction) AsUdiv(x, y Value) { i.asBinary(OpcodeUdiv, x, y) }
func (i *Instruction) AsSrem(x, y Value) { i.asBinary(OpcodeSrem, x, y); i.signed = true }
func (i *Instruction) AsUrem(x, y Value) { i.asBinary(OpcodeUrem, x, y) }

func (i *Instruction) asUnary(op Opcode, x Value) {
	i.opcode = op
	i.v = x
	i.typ = x.Type()
}

func (i *Instruction) AsBnot(x Value)  { i.asUnary(OpcodeBnot, x) }
func (i *Instruction) AsFneg(x Value)  { i.asUnary(OpcodeFneg, x) }
func (i *Instruction) AsFabs(x Value)  { i.asUnary(OpcodeFabs, x) }
func (i *Instruction) AsSqrt(x Value)  { i.asUnary(OpcodeSqrt, x) }
func (i *Instruction) AsCeil(x Value)  { i.asUnary(OpcodeCeil, x) }
func (i *Instruction) AsFloor(x Value) { i.asUnary(OpcodeFloor, x) }
func (i *Instruction) AsFtrunc(x Value) { i.asUnary(OpcodeFtrunc, x) }
func (i *Instruction) AsNearest(x Value) { i.asUnary(OpcodeNearest, x) }

// AsClz/AsCtz/AsPopcnt implement the unary bit-count operators of spec.md
// §4.3. Per the cranelift-derived IR these model, the counting instructions
// themselves always yield i32 regardless of operand width; the translator
// (internal/translator/numeric.go's widenCountResult) zero-extends an i64
// operand's count back to i64 before pushing (a count is never negative,
// so this equals sign-extension).
func (i *Instruction) AsClz(x Value)    { i.opcode = OpcodeClz; i.v = x; i.typ = TypeI32 }
func (i *Instruction) AsCtz(x Value)    { i.opcode = OpcodeCtz; i.v = x; i.typ = TypeI32 }
func (i *Instruction) AsPopcnt(x Value) { i.opcode = OpcodePopcnt; i.v = x; i.typ = TypeI32 }

// AsIcmp/AsFcmp produce a boolean-typed value (TypeBool), not yet widened to
// wasm's i32 comparison convention; the translator always immediately wraps
// the result in AsBoolToInt (spec.md §4.3).
func (i *Instruction) AsIcmp(x, y Value, cond IntegerCmpCond) {
	i.opcode = OpcodeIcmp
	i.v, i.v2 = x, y
	i.icmpCond = cond
	i.typ = TypeBool
}

func (i *Instruction) AsFcmp(x, y Value, cond FloatCmpCond) {
	i.opcode = OpcodeFcmp
	i.v, i.v2 = x, y
	i.fcmpCond = cond
	i.typ = TypeBool
}

// AsBoolToInt widens a boolean (icmp/fcmp) result to an i32 0/1, matching
// wasm's convention that comparisons yield i32 (spec.md §4.3).
func (i *Instruction) AsBoolToInt(x Value) {
	i.opcode = OpcodeBoolToInt
	i.v = x
	i.typ = TypeI32
}

// --- conversions -----------------------------------------------------------------------

func (i *Instruction) AsSExtend(x Value, from, to byte) {
	i.opcode = OpcodeSExtend
	i.v = x
	i.fromBits, i.toBits = from, to
	i.signed = true
	i.typ = widthType(to)
}

func (i *Instruction) AsUExtend(x Value, from, to byte) {
	i.opcode = OpcodeUExtend
	i.v = x
	i.fromBits, i.toBits = from, to
	i.typ = widthType(to)
}

// AsIreduce implements i32.wrap_i64: truncate a wider integer to a narrower
// one (spec.md §4.3 "integer-reduce").
func (i *Instruction) AsIreduce(x Value, to byte) {
	i.opcode = OpcodeIreduce
	i.v = x
	i.toBits = to
	i.typ = widthType(to)
}

func (i *Instruction) AsFcvtToSint(x Value, to Type) {
	i.opcode = OpcodeFcvtToSint
	i.v = x
	i.signed = true
	i.typ = to
}

func (i *Instruction) AsFcvtToUint(x Value, to Type) {
	i.opcode = OpcodeFcvtToUint
	i.v = x
	i.typ = to
}

func (i *Instruction) AsFcvtFromSint(x Value, to Type) {
	i.opcode = OpcodeFcvtFromSint
	i.v = x
	i.signed = true
	i.typ = to
}

func (i *Instruction) AsFcvtFromUint(x Value, to Type) {
	i.opcode = OpcodeFcvtFromUint
	i.v = x
	i.typ = to
}

func (i *Instruction) AsFpromote(x Value) { i.opcode = OpcodeFpromote; i.v = x; i.typ = TypeF64 }
func (i *Instruction) AsFdemote(x Value)  { i.opcode = OpcodeFdemote; i.v = x; i.typ = TypeF32 }

// AsBitcast reinterprets x's bits as typ without conversion (wasm's
// `reinterpret`, spec.md §4.3).
func (i *Instruction) AsBitcast(x Value, typ Type) {
	i.opcode = OpcodeBitcast
	i.v = x
	i.typ = typ
}

func widthType(bits byte) Type {
	switch bits {
	case 32:
		return TypeI32
	case 64:
		return TypeI64
	default:
		panic("invalid integer width")
	}
}

// --- memory ------------------------------------------------------------------------------

// AsLoad emits a full-width, non-extending load of typ from addr+offset.
func (i *Instruction) AsLoad(addr Value, offset uint32, typ Type) {
	i.opcode = OpcodeLoad
	i.v = addr
	i.offset = offset
	i.typ = typ
}

// AsExtLoad emits a width- and sign/zero-extending load. op must be one of
// OpcodeUload{8,16,32}/OpcodeSload{8,16,32}; to64 selects an i64 vs i32
// result, matching spec.md §4.3's width-specific load selection.
func (i *Instruction) AsExtLoad(op Opcode, addr Value, offset uint32, to64 bool) {
	switch op {
	case OpcodeUload8, OpcodeSload8, OpcodeUload16, OpcodeSload16, OpcodeUload32, OpcodeSload32:
	default:
		panic("AsExtLoad: not an extending load opcode: " + op.String())
	}
	i.opcode = op
	i.v = addr
	i.offset = offset
	if to64 {
		i.typ = TypeI64
	} else {
		i.typ = TypeI32
	}
}

// AsStore emits a full-width store of value to addr+offset.
func (i *Instruction) AsStore(value, addr Value, offset uint32) {
	i.opcode = OpcodeStore
	i.v, i.v2 = value, addr
	i.offset = offset
}

// AsTruncatingStore emits a width-truncating store (i32.store8 etc.). op
// must be one of OpcodeIstore{8,16,32}.
func (i *Instruction) AsTruncatingStore(op Opcode, value, addr Value, offset uint32) {
	switch op {
	case OpcodeIstore8, OpcodeIstore16, OpcodeIstore32:
	default:
		panic("AsTruncatingStore: not a truncating store opcode: " + op.String())
	}
	i.opcode = op
	i.v, i.v2 = value, addr
	i.offset = offset
}

// --- control flow --------------------------------------------------------------------------

// AsJump emits an unconditional jump to target, carrying args as the
// target's formal-parameter bindings.
func (i *Instruction) AsJump(args []Value, target BasicBlock) {
	i.opcode = OpcodeJump
	i.vs = args
	i.blk = target
}

// AsBrz emits "branch to target with args if v == 0", matching spec.md
// §4.2's `if` lowering (brz on the condition jumps to the false arm).
func (i *Instruction) AsBrz(v Value, args []Value, target BasicBlock) {
	i.opcode = OpcodeBrz
	i.v = v
	i.vs = args
	i.blk = target
}

// AsBrnz emits "branch to target with args if v != 0", used by `br_if`.
func (i *Instruction) AsBrnz(v Value, args []Value, target BasicBlock) {
	i.opcode = OpcodeBrnz
	i.v = v
	i.vs = args
	i.blk = target
}

// retargetBrz redirects a previously-emitted Brz's target, used by the
// control engine when an `if`'s `else` arm appears (spec.md §4.2).
func (i *Instruction) retargetBrz(target BasicBlock) {
	if i.opcode != OpcodeBrz {
		panic("BUG: retargetBrz called on non-Brz instruction")
	}
	i.blk = target
}

// BranchTarget returns the single branch target of Jump/Brz/Brnz.
func (i *Instruction) BranchTarget() BasicBlock { return i.blk }

// BranchArgs returns the argument list of Jump/Brz/Brnz.
func (i *Instruction) BranchArgs() []Value { return i.vs }

// AsBrTable emits a jump table: index selects targets[index], or
// targets[len(targets)-1] (the default) if index is out of range. This
// models spec.md §4.2's zero-arity br_table directly; non-zero arity uses
// per-depth trampoline blocks (see internal/translator/control.go), each of
// which is itself just a Jump, so BrTable's targets never carry arguments.
func (i *Instruction) AsBrTable(index Value, targets []BasicBlock) {
	i.opcode = OpcodeBrTable
	i.v = index
	i.targets = targets
}

// Targets returns the br_table jump-table entries; the last entry is the
// default.
func (i *Instruction) Targets() []BasicBlock { return i.targets }

// AsReturn emits a function return carrying results.
func (i *Instruction) AsReturn(results []Value) {
	i.opcode = OpcodeReturn
	i.vs = results
}

// AsTrap emits an unconditional trap (wasm's `unreachable`).
func (i *Instruction) AsTrap() { i.opcode = OpcodeTrap }

// AsCall emits a direct call through an interned FuncRef (see
// internal/translator's import interner).
func (i *Instruction) AsCall(ref FuncRef, sig *Signature, args []Value) {
	i.opcode = OpcodeCall
	i.funcRef = ref
	i.sig = sig
	i.vs = args
	sig.used = true
}

// AsCallIndirect emits a call through a runtime-resolved callee address
// (spec.md §4.3 call_indirect), after the runtime adapter has performed the
// table lookup/bounds/signature check.
func (i *Instruction) AsCallIndirect(callee Value, sig *Signature, args []Value) {
	i.opcode = OpcodeCallIndirect
	i.indirectCallee = callee
	i.sig = sig
	i.vs = args
	sig.used = true
}

// AsSelect emits wasm's `select`: cond ? ifTrue : ifFalse.
func (i *Instruction) AsSelect(cond, ifTrue, ifFalse Value) {
	i.opcode = OpcodeSelect
	i.v, i.v2 = ifTrue, ifFalse
	i.vs = []Value{cond}
	i.typ = ifTrue.Type()
}

// --- accessors used by internal/interp and formatting ---------------------------------

func (i *Instruction) Arg() Value              { return i.v }
func (i *Instruction) Args() (Value, Value)    { return i.v, i.v2 }
func (i *Instruction) VariadicArgs() []Value   { return i.vs }
func (i *Instruction) ConstBits() uint64       { return i.u64 }
func (i *Instruction) MemOffset() uint32       { return i.offset }
func (i *Instruction) ExtendWidths() (from, to byte, signed bool) {
	return i.fromBits, i.toBits, i.signed
}
func (i *Instruction) ReduceWidth() byte             { return i.toBits }
func (i *Instruction) IntegerCmpCond() IntegerCmpCond { return i.icmpCond }
func (i *Instruction) FloatCmpCond() FloatCmpCond     { return i.fcmpCond }
func (i *Instruction) Signed() bool                   { return i.signed }
func (i *Instruction) ConstType() Type                { return i.typ }
func (i *Instruction) Signature() *Signature           { return i.sig }
func (i *Instruction) FuncRef() FuncRef                { return i.funcRef }
func (i *Instruction) IndirectCallee() Value           { return i.indirectCallee }
func (i *Instruction) SelectCond() Value               { return i.vs[0] }

// Format renders a debug string for this instruction, resolving Value names
// through b's annotations.
func (i *Instruction) Format(b Builder) string {
	var lhs string
	if i.rValue.Valid() {
		lhs = i.rValue.format(b) + " = "
	}
	if len(i.rValues) > 0 {
		names := make([]string, len(i.rValues))
		for idx, v := range i.rValues {
			names[idx] = v.format(b)
		}
		lhs += strings.Join(names, ", ") + " = "
	}
	return fmt.Sprintf("%s%s %s", lhs, i.opcode, i.formatArgs(b))
}

func (i *Instruction) formatArgs(b Builder) string {
	switch i.opcode {
	case OpcodeJump, OpcodeBrz, OpcodeBrnz:
		args := make([]string, len(i.vs))
		for idx, v := range i.vs {
			args[idx] = v.format(b)
		}
		switch i.opcode {
		case OpcodeJump:
			return fmt.Sprintf("%s(%s)", i.blk.(fmt.Stringer).String(), strings.Join(args, ", "))
		default:
			return fmt.Sprintf("%s, %s(%s)", i.v.format(b), i.blk.(fmt.Stringer).String(), strings.Join(args, ", "))
		}
	case OpcodeBrTable:
		return fmt.Sprintf("%s, [%d targets]", i.v.format(b), len(i.targets))
	case OpcodeReturn:
		args := make([]string, len(i.vs))
		for idx, v := range i.vs {
			args[idx] = v.format(b)
		}
		return strings.Join(args, ", ")
	default:
		return ""
	}
}
