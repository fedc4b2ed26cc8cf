// Package interp is a direct SSA EBB interpreter: the "in-process executor"
// half of spec.md's Purpose statement ("optionally execute a designated
// entry function"), walking extended basic blocks and binding branch
// arguments to a target's formal parameters instead of decoding machine
// code. It performs no register allocation, instruction selection, or
// encoding (spec.md Non-goals), and is adapted from the teacher's
// internal/engine/interpreter/interpreter.go: same big dispatch-on-opcode
// shape, generalized from a flat op-list walk to following EBB successors.
package interp

import (
	"fmt"
	"math"

	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/ssa"
)

// Function is a self-contained snapshot of one translated wasm function's
// SSA form. ssa.Builder is reused (Reset) across functions by
// internal/translator.Translator, so Compile must copy out everything
// execution needs right after TranslateFunction returns, before the next
// call overwrites the same arena (see translator.Translator.Builder's doc
// comment).
type Function struct {
	blocks []*block
}

// BlockCount reports how many extended basic blocks make up this function,
// used by cmd/wasm2ssa's verbose output.
func (f *Function) BlockCount() int { return len(f.blocks) }

type block struct {
	// params are the real ssa.Value identities of this block's formal
	// parameters, exactly as allocated by the Builder — kept verbatim (not
	// reconstructed) so every instruction elsewhere in the block that reads
	// one of these as an operand resolves to the same frame slot.
	params []ssa.Value
	instrs []instr
}

// target resolves a branch destination at snapshot time: either a block
// index within the same Function, or the synthetic function-return
// pseudo-block.
type target struct {
	isReturn bool
	index    int
}

type instr struct {
	op             ssa.Opcode
	arg, arg2      ssa.Value
	args           []ssa.Value
	constBits      uint64
	constType      ssa.Type
	fromBits       byte
	toBits         byte
	icmpCond       ssa.IntegerCmpCond
	fcmpCond       ssa.FloatCmpCond
	target         target
	targets        []target
	funcRef        ssa.FuncRef
	indirectCallee ssa.Value
	result         ssa.Value
	results        []ssa.Value
}

// Compile snapshots b's currently-built function (as left by a
// translator.Translator.TranslateFunction call) into a Function safe to
// keep and execute after the next TranslateFunction call reuses b.
func Compile(b ssa.Builder) *Function {
	blocks := b.Blocks()
	index := make(map[ssa.BasicBlock]int, len(blocks))
	for i, blk := range blocks {
		index[blk] = i
	}
	resolve := func(blk ssa.BasicBlock) target {
		if blk == nil {
			return target{index: -1}
		}
		if blk.ReturnBlock() {
			return target{isReturn: true}
		}
		return target{index: index[blk]}
	}

	fn := &Function{blocks: make([]*block, len(blocks))}
	for bi, blk := range blocks {
		bl := &block{params: make([]ssa.Value, blk.Params())}
		for p := range bl.params {
			bl.params[p] = blk.Param(p)
		}
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			rec := instr{
				op:        cur.Opcode(),
				constBits: cur.ConstBits(),
				constType: cur.ConstType(),
				icmpCond:  cur.IntegerCmpCond(),
				fcmpCond:  cur.FloatCmpCond(),
				funcRef:   cur.FuncRef(),
				result:    cur.Return(),
			}
			rec.arg, rec.arg2 = cur.Args()
			rec.args = cur.VariadicArgs()
			rec.fromBits, rec.toBits, _ = cur.ExtendWidths()
			switch cur.Opcode() {
			case ssa.OpcodeJump, ssa.OpcodeBrz, ssa.OpcodeBrnz:
				rec.target = resolve(cur.BranchTarget())
			case ssa.OpcodeBrTable:
				ts := cur.Targets()
				rec.targets = make([]target, len(ts))
				for i, t := range ts {
					rec.targets[i] = resolve(t)
				}
			case ssa.OpcodeCallIndirect:
				rec.indirectCallee = cur.IndirectCallee()
			}
			if cur.Opcode() == ssa.OpcodeCall || cur.Opcode() == ssa.OpcodeCallIndirect {
				_, rest := cur.Returns()
				rec.results = rest
			}
			bl.instrs = append(bl.instrs, rec)
		}
		fn.blocks[bi] = bl
	}
	return fn
}

// Module is every locally-defined function of a translated wasm module,
// keyed by the combined function index space (spec.md GLOSSARY "function
// index space"), plus the RuntimeAdapter backing its globals/memory/table.
// internal/moduledriver builds one of these; Call is its sole execution
// entry point, matching spec.md's "optionally execute a designated entry
// function".
type Module struct {
	Functions map[uint32]*Function
	Runtime   runtimeadapter.RuntimeAdapter
}

// frame holds one activation's value bindings, keyed by ssa.ValueID. A
// function's Values are all allocated from the one Builder that built it,
// so IDs never collide across that function's own instructions and block
// params, including every block param Compile copies verbatim from the
// Builder.
type frame struct {
	values map[ssa.ValueID]uint64
}

func (f *frame) set(v ssa.Value, bits uint64) { f.values[v.ID()] = bits }
func (f *frame) get(v ssa.Value) uint64        { return f.values[v.ID()] }

// Call executes funcIdx with args (already-encoded raw bit patterns, one
// per parameter in declaration order — the entry block's formal params) and
// returns its results the same way.
func (m *Module) Call(funcIdx uint32, args []uint64) ([]uint64, error) {
	fn, ok := m.Functions[funcIdx]
	if !ok {
		return nil, fmt.Errorf("interp: function %d is imported or has no translated body", funcIdx)
	}
	f := &frame{values: make(map[ssa.ValueID]uint64)}
	entry := fn.blocks[0]
	for i, p := range entry.params {
		f.set(p, args[i])
	}
	return m.run(fn, entry, f)
}

func (m *Module) run(fn *Function, blk *block, f *frame) ([]uint64, error) {
	for {
		next, results, err := m.runBlock(fn, blk, f)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return results, nil
		}
		blk = next
	}
}

// runBlock executes blk's instructions in order, returning either the next
// block to run (for Jump/Brz/Brnz/BrTable) or this function's results (for
// Return) — never both.
func (m *Module) runBlock(fn *Function, blk *block, f *frame) (*block, []uint64, error) {
	for idx := range blk.instrs {
		in := &blk.instrs[idx]
		switch in.op {
		case ssa.OpcodeJump:
			return m.branch(fn, f, in.target, in.args)
		case ssa.OpcodeBrz:
			if f.get(in.arg) == 0 {
				return m.branch(fn, f, in.target, in.args)
			}
		case ssa.OpcodeBrnz:
			if f.get(in.arg) != 0 {
				return m.branch(fn, f, in.target, in.args)
			}
		case ssa.OpcodeBrTable:
			sel := uint32(f.get(in.arg))
			if int(sel) >= len(in.targets)-1 {
				sel = uint32(len(in.targets) - 1)
			}
			return m.branch(fn, f, in.targets[sel], nil)
		case ssa.OpcodeReturn:
			return nil, gather(f, in.args), nil
		case ssa.OpcodeTrap:
			return nil, nil, fmt.Errorf("interp: trap")
		case ssa.OpcodeCall:
			res, err := m.Call(uint32(in.funcRef), gather(f, in.args))
			if err != nil {
				return nil, nil, err
			}
			pushCallResults(f, in, res)
		case ssa.OpcodeCallIndirect:
			return nil, nil, fmt.Errorf("interp: call_indirect is not executable here: the runtime adapter resolves a callee host address, not a function index this interpreter can dispatch on")
		default:
			if err := m.execValue(in, f); err != nil {
				return nil, nil, err
			}
		}
	}
	return nil, nil, fmt.Errorf("interp: a block fell off its end without a terminator")
}

func gather(f *frame, vs []ssa.Value) []uint64 {
	out := make([]uint64, len(vs))
	for i, v := range vs {
		out[i] = f.get(v)
	}
	return out
}

func pushCallResults(f *frame, in *instr, res []uint64) {
	if len(res) == 0 {
		return
	}
	f.set(in.result, res[0])
	for i, v := range in.results {
		f.set(v, res[i+1])
	}
}

// branch binds dest's formal parameters to args' current values and returns
// dest as the next block to run (or, for a branch to the function's return
// pseudo-block, resolves straight to results).
func (m *Module) branch(fn *Function, f *frame, t target, args []ssa.Value) (*block, []uint64, error) {
	if t.isReturn {
		return nil, gather(f, args), nil
	}
	dest := fn.blocks[t.index]
	bound := gather(f, args)
	for i, p := range dest.params {
		f.set(p, bound[i])
	}
	return dest, nil, nil
}

func (m *Module) execValue(in *instr, f *frame) error {
	switch in.op {
	case ssa.OpcodeIconst32, ssa.OpcodeIconst64, ssa.OpcodeF32const, ssa.OpcodeF64const:
		f.set(in.result, in.constBits)
	case ssa.OpcodeIadd:
		f.set(in.result, intBinary(in, f, func(x, y uint64) uint64 { return x + y }))
	case ssa.OpcodeIsub:
		f.set(in.result, intBinary(in, f, func(x, y uint64) uint64 { return x - y }))
	case ssa.OpcodeImul:
		f.set(in.result, intBinary(in, f, func(x, y uint64) uint64 { return x * y }))
	case ssa.OpcodeBand:
		f.set(in.result, intBinary(in, f, func(x, y uint64) uint64 { return x & y }))
	case ssa.OpcodeBor:
		f.set(in.result, intBinary(in, f, func(x, y uint64) uint64 { return x | y }))
	case ssa.OpcodeBxor:
		f.set(in.result, intBinary(in, f, func(x, y uint64) uint64 { return x ^ y }))
	case ssa.OpcodeIshl:
		f.set(in.result, intBinary(in, f, func(x, y uint64) uint64 { return x << (y & 63) }))
	case ssa.OpcodeUshr:
		f.set(in.result, shiftUnsigned(in, f))
	case ssa.OpcodeSshr:
		f.set(in.result, shiftSigned(in, f))
	case ssa.OpcodeSdiv, ssa.OpcodeUdiv, ssa.OpcodeSrem, ssa.OpcodeUrem:
		res, err := divRem(in, f)
		if err != nil {
			return err
		}
		f.set(in.result, res)
	case ssa.OpcodeBnot:
		f.set(in.result, ^f.get(in.arg))
	case ssa.OpcodeClz, ssa.OpcodeCtz, ssa.OpcodePopcnt:
		f.set(in.result, bitCount(in, f))
	case ssa.OpcodeIcmp:
		f.set(in.result, boolBit(icmp(in, f)))
	case ssa.OpcodeFcmp:
		f.set(in.result, boolBit(fcmp(in, f)))
	case ssa.OpcodeBoolToInt:
		f.set(in.result, f.get(in.arg))
	case ssa.OpcodeFadd, ssa.OpcodeFsub, ssa.OpcodeFmul, ssa.OpcodeFdiv, ssa.OpcodeFmin, ssa.OpcodeFmax, ssa.OpcodeCopysign:
		f.set(in.result, floatBinary(in, f))
	case ssa.OpcodeFneg, ssa.OpcodeFabs, ssa.OpcodeSqrt, ssa.OpcodeCeil, ssa.OpcodeFloor, ssa.OpcodeFtrunc, ssa.OpcodeNearest:
		f.set(in.result, floatUnary(in, f))
	case ssa.OpcodeSExtend, ssa.OpcodeUExtend, ssa.OpcodeIreduce:
		f.set(in.result, extendOrReduce(in, f))
	case ssa.OpcodeFcvtToSint, ssa.OpcodeFcvtToUint, ssa.OpcodeFcvtFromSint, ssa.OpcodeFcvtFromUint, ssa.OpcodeFpromote, ssa.OpcodeFdemote, ssa.OpcodeBitcast:
		f.set(in.result, convert(in, f))
	case ssa.OpcodeSelect:
		cond := f.get(in.args[0])
		if cond != 0 {
			f.set(in.result, f.get(in.arg))
		} else {
			f.set(in.result, f.get(in.arg2))
		}
	case ssa.OpcodeLoad, ssa.OpcodeUload8, ssa.OpcodeSload8, ssa.OpcodeUload16, ssa.OpcodeSload16,
		ssa.OpcodeUload32, ssa.OpcodeSload32, ssa.OpcodeStore, ssa.OpcodeIstore8, ssa.OpcodeIstore16,
		ssa.OpcodeIstore32:
		return memOp(in, f)
	default:
		return fmt.Errorf("interp: unsupported opcode %s", in.op)
	}
	return nil
}

// memOp executes a load/store by directly dereferencing the host address
// the translator's runtimeadapter.MemoryAddress already resolved into
// in.arg (loads) or in.arg2 (stores): an Iconst64 holding a real Go slice
// base address plus a checked in-bounds offset (standalone.go's documented
// contract — the one reason this interpreter, not general Go code, is
// allowed to treat an i64 as a pointer).
func memOp(in *instr, f *frame) error {
	switch in.op {
	case ssa.OpcodeStore, ssa.OpcodeIstore8, ssa.OpcodeIstore16, ssa.OpcodeIstore32:
		addr := uintptrOf(f.get(in.arg2))
		storeAt(addr, f.get(in.arg), in.op, in.arg.Type())
		return nil
	default:
		addr := uintptrOf(f.get(in.arg))
		f.set(in.result, loadAt(addr, in.op, in.constType))
		return nil
	}
}

func intBinary(in *instr, f *frame, apply func(x, y uint64) uint64) uint64 {
	return apply(f.get(in.arg), f.get(in.arg2))
}

func shiftUnsigned(in *instr, f *frame) uint64 {
	x, y := f.get(in.arg), f.get(in.arg2)
	if in.constType == ssa.TypeI32 {
		return uint64(uint32(x) >> (uint32(y) & 31))
	}
	return x >> (y & 63)
}

func shiftSigned(in *instr, f *frame) uint64 {
	x, y := f.get(in.arg), f.get(in.arg2)
	if in.constType == ssa.TypeI32 {
		return uint64(uint32(int32(x) >> (uint32(y) & 31)))
	}
	return uint64(int64(x) >> (y & 63))
}

func divRem(in *instr, f *frame) (uint64, error) {
	x, y := f.get(in.arg), f.get(in.arg2)
	is32 := in.constType == ssa.TypeI32
	switch in.op {
	case ssa.OpcodeUdiv:
		if is32 {
			return uint64(uint32(x) / uint32(y)), nil
		}
		return x / y, nil
	case ssa.OpcodeUrem:
		if is32 {
			return uint64(uint32(x) % uint32(y)), nil
		}
		return x % y, nil
	case ssa.OpcodeSdiv:
		if is32 {
			return uint64(uint32(int32(x) / int32(y))), nil
		}
		return uint64(int64(x) / int64(y)), nil
	default: // OpcodeSrem
		if is32 {
			return uint64(uint32(int32(x) % int32(y))), nil
		}
		return uint64(int64(x) % int64(y)), nil
	}
}

func bitCount(in *instr, f *frame) uint64 {
	x := f.get(in.arg)
	width := 32
	if in.arg.Type() == ssa.TypeI64 {
		width = 64
	}
	switch in.op {
	case ssa.OpcodeClz:
		for b := width - 1; b >= 0; b-- {
			if x&(1<<uint(b)) != 0 {
				return uint64(width - 1 - b)
			}
		}
		return uint64(width)
	case ssa.OpcodeCtz:
		for b := 0; b < width; b++ {
			if x&(1<<uint(b)) != 0 {
				return uint64(b)
			}
		}
		return uint64(width)
	default: // OpcodePopcnt
		var n uint64
		for b := 0; b < width; b++ {
			if x&(1<<uint(b)) != 0 {
				n++
			}
		}
		return n
	}
}

func boolBit(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func icmp(in *instr, f *frame) bool {
	x, y := f.get(in.arg), f.get(in.arg2)
	is32 := in.arg.Type() == ssa.TypeI32
	switch in.icmpCond {
	case ssa.IntegerCmpCondEqual:
		return x == y
	case ssa.IntegerCmpCondNotEqual:
		return x != y
	case ssa.IntegerCmpCondSignedLessThan:
		return signedLess(x, y, is32)
	case ssa.IntegerCmpCondSignedGreaterThanOrEqual:
		return !signedLess(x, y, is32)
	case ssa.IntegerCmpCondSignedGreaterThan:
		return signedLess(y, x, is32)
	case ssa.IntegerCmpCondSignedLessThanOrEqual:
		return !signedLess(y, x, is32)
	case ssa.IntegerCmpCondUnsignedLessThan:
		return unsignedLess(x, y, is32)
	case ssa.IntegerCmpCondUnsignedGreaterThanOrEqual:
		return !unsignedLess(x, y, is32)
	case ssa.IntegerCmpCondUnsignedGreaterThan:
		return unsignedLess(y, x, is32)
	default: // IntegerCmpCondUnsignedLessThanOrEqual
		return !unsignedLess(y, x, is32)
	}
}

func signedLess(x, y uint64, is32 bool) bool {
	if is32 {
		return int32(x) < int32(y)
	}
	return int64(x) < int64(y)
}

func unsignedLess(x, y uint64, is32 bool) bool {
	if is32 {
		return uint32(x) < uint32(y)
	}
	return x < y
}

func fcmp(in *instr, f *frame) bool {
	x, y := asFloat(in.arg, f), asFloat(in.arg2, f)
	switch in.fcmpCond {
	case ssa.FloatCmpCondEqual:
		return x == y
	case ssa.FloatCmpCondNotEqual:
		return x != y
	case ssa.FloatCmpCondLessThan:
		return x < y
	case ssa.FloatCmpCondGreaterThanOrEqual:
		return x >= y
	case ssa.FloatCmpCondGreaterThan:
		return x > y
	default: // FloatCmpCondLessThanOrEqual
		return x <= y
	}
}

func asFloat(v ssa.Value, f *frame) float64 {
	bits := f.get(v)
	if v.Type() == ssa.TypeF32 {
		return float64(math.Float32frombits(uint32(bits)))
	}
	return math.Float64frombits(bits)
}

func floatBinary(in *instr, f *frame) uint64 {
	x, y := asFloat(in.arg, f), asFloat(in.arg2, f)
	var r float64
	switch in.op {
	case ssa.OpcodeFadd:
		r = x + y
	case ssa.OpcodeFsub:
		r = x - y
	case ssa.OpcodeFmul:
		r = x * y
	case ssa.OpcodeFdiv:
		r = x / y
	case ssa.OpcodeFmin:
		r = math.Min(x, y)
	case ssa.OpcodeFmax:
		r = math.Max(x, y)
	default: // OpcodeCopysign
		r = math.Copysign(x, y)
	}
	return encodeFloat(r, in.constType)
}

func floatUnary(in *instr, f *frame) uint64 {
	x := asFloat(in.arg, f)
	var r float64
	switch in.op {
	case ssa.OpcodeFneg:
		r = -x
	case ssa.OpcodeFabs:
		r = math.Abs(x)
	case ssa.OpcodeSqrt:
		r = math.Sqrt(x)
	case ssa.OpcodeCeil:
		r = math.Ceil(x)
	case ssa.OpcodeFloor:
		r = math.Floor(x)
	case ssa.OpcodeFtrunc:
		r = math.Trunc(x)
	default: // OpcodeNearest
		r = math.RoundToEven(x)
	}
	return encodeFloat(r, in.constType)
}

func encodeFloat(r float64, t ssa.Type) uint64 {
	if t == ssa.TypeF32 {
		return uint64(math.Float32bits(float32(r)))
	}
	return math.Float64bits(r)
}

func extendOrReduce(in *instr, f *frame) uint64 {
	x := f.get(in.arg)
	switch in.op {
	case ssa.OpcodeIreduce:
		if in.toBits == 32 {
			return uint64(uint32(x))
		}
		return x
	case ssa.OpcodeUExtend:
		if in.fromBits == 32 {
			return uint64(uint32(x))
		}
		return x
	default: // OpcodeSExtend
		if in.fromBits == 32 {
			return uint64(int64(int32(x)))
		}
		return x
	}
}

func convert(in *instr, f *frame) uint64 {
	x := f.get(in.arg)
	switch in.op {
	case ssa.OpcodeFcvtToSint:
		v := asFloat(in.arg, f)
		if in.constType == ssa.TypeI32 {
			return uint64(uint32(int32(v)))
		}
		return uint64(int64(v))
	case ssa.OpcodeFcvtToUint:
		v := asFloat(in.arg, f)
		if in.constType == ssa.TypeI32 {
			return uint64(uint32(v))
		}
		return uint64(v)
	case ssa.OpcodeFcvtFromSint:
		var v float64
		if in.arg.Type() == ssa.TypeI32 {
			v = float64(int32(x))
		} else {
			v = float64(int64(x))
		}
		return encodeFloat(v, in.constType)
	case ssa.OpcodeFcvtFromUint:
		var v float64
		if in.arg.Type() == ssa.TypeI32 {
			v = float64(uint32(x))
		} else {
			v = float64(x)
		}
		return encodeFloat(v, in.constType)
	case ssa.OpcodeFpromote:
		return math.Float64bits(float64(math.Float32frombits(uint32(x))))
	case ssa.OpcodeFdemote:
		return uint64(math.Float32bits(float32(math.Float64frombits(x))))
	default: // OpcodeBitcast
		return x
	}
}
