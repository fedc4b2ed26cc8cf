package translator

import (
	"math"

	"github.com/wasmssa/wasmssa/internal/ssa"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// This file is the Value Engine (spec.md §4.3): every opcode that is
// neither a structural control-flow construct nor one of the br family.
// dispatcher.go routes here only while translation is at a reachable
// position, so lowerValueOp never needs to consult loweringState.unreachable
// itself.

// lowerValueOp lowers a single non-control-flow operator.
func (t *Translator) lowerValueOp(op wasm.Operator) error {
	switch op.Op {
	case wasm.OpNop:
		return nil
	case wasm.OpDrop:
		t.state.pop()
		return nil
	case wasm.OpSelect:
		return t.selectOp()

	case wasm.OpLocalGet:
		t.state.push(t.b.MustFindValue(t.locals[op.LocalIndex]))
		return nil
	case wasm.OpLocalSet:
		t.b.DefineVariableInCurrentBB(t.locals[op.LocalIndex], t.state.pop())
		return nil
	case wasm.OpLocalTee:
		v := t.state.peekN(1)[0]
		t.b.DefineVariableInCurrentBB(t.locals[op.LocalIndex], v)
		return nil

	case wasm.OpGlobalGet:
		return t.globalGet(op.GlobalIndex)
	case wasm.OpGlobalSet:
		return t.globalSet(op.GlobalIndex)

	case wasm.OpI32Const:
		return t.constI32(op.I32Const)
	case wasm.OpI64Const:
		return t.constI64(op.I64Const)
	case wasm.OpF32Const:
		return t.constF32(op.F32Const)
	case wasm.OpF64Const:
		return t.constF64(op.F64Const)

	case wasm.OpCall:
		return t.call(op.FuncIndex)
	case wasm.OpCallIndirect:
		return t.callIndirect(op.TypeIndex, op.TableIndex)

	case wasm.OpMemorySize:
		t.state.push(t.runtime.MemorySize(t.b))
		return nil
	case wasm.OpMemoryGrow:
		delta := t.state.pop()
		t.state.push(t.runtime.MemoryGrow(t.b, delta))
		return nil
	}

	if op.Op >= wasm.OpI32Load && op.Op <= wasm.OpI64Store32 {
		return t.memoryOp(op)
	}

	return t.numericOp(op)
}

func (t *Translator) selectOp() error {
	cond := t.state.pop()
	ifFalse := t.state.pop()
	ifTrue := t.state.pop()
	instr := t.b.AllocateInstruction()
	instr.AsSelect(cond, ifTrue, ifFalse)
	t.b.InsertInstruction(instr)
	t.state.push(instr.Return())
	return nil
}

func (t *Translator) globalGet(idx uint32) error {
	typ := t.runtime.GlobalType(idx)
	t.state.push(t.runtime.GetGlobal(t.b, idx, typ))
	return nil
}

func (t *Translator) globalSet(idx uint32) error {
	t.runtime.SetGlobal(t.b, idx, t.state.pop())
	return nil
}

func (t *Translator) constI32(v int32) error {
	instr := t.b.AllocateInstruction()
	instr.AsIconst32(uint32(v))
	t.b.InsertInstruction(instr)
	t.state.push(instr.Return())
	return nil
}

func (t *Translator) constI64(v int64) error {
	instr := t.b.AllocateInstruction()
	instr.AsIconst64(uint64(v))
	t.b.InsertInstruction(instr)
	t.state.push(instr.Return())
	return nil
}

func (t *Translator) constF32(bits uint32) error {
	instr := t.b.AllocateInstruction()
	instr.AsF32const(math.Float32frombits(bits))
	t.b.InsertInstruction(instr)
	t.state.push(instr.Return())
	return nil
}

func (t *Translator) constF64(bits uint64) error {
	instr := t.b.AllocateInstruction()
	instr.AsF64const(math.Float64frombits(bits))
	t.b.InsertInstruction(instr)
	t.state.push(instr.Return())
	return nil
}

func (t *Translator) call(funcIdx uint32) error {
	sig := t.interner.signatureOf(funcIdx)
	args := t.state.popN(len(sig.Params))
	ref := t.interner.funcRef(funcIdx)
	instr := t.b.AllocateInstruction()
	instr.AsCall(ref, sig, args)
	t.b.InsertInstruction(instr)
	t.pushResults(instr, len(sig.Results))
	return nil
}

func (t *Translator) callIndirect(typeIdx, tableIdx uint32) error {
	sig := t.interner.signature(typeIdx)
	index := t.state.pop()
	args := t.state.popN(len(sig.Params))
	callee := t.runtime.CallIndirect(t.b, tableIdx, typeIdx, index, sig)
	instr := t.b.AllocateInstruction()
	instr.AsCallIndirect(callee, sig, args)
	t.b.InsertInstruction(instr)
	t.pushResults(instr, len(sig.Results))
	return nil
}

func (t *Translator) pushResults(instr *ssa.Instruction, n int) {
	switch n {
	case 0:
	case 1:
		t.state.push(instr.Return())
	default:
		first, rest := instr.Returns()
		t.state.push(first)
		for _, v := range rest {
			t.state.push(v)
		}
	}
}

// memOpInfo describes one load/store opcode's shape: result/operand type,
// access width for bounds checking, extend/truncate behavior, and signedness.
type memOpInfo struct {
	typ        ssa.Type
	accessSize byte
	store      bool
	ext        ssa.Opcode // 0 for a full-width load; OpcodeUload8 etc. otherwise
	to64       bool
	trunc      ssa.Opcode // 0 for a full-width store; OpcodeIstore8 etc. otherwise
}

var memOpTable = map[wasm.Opcode]memOpInfo{
	wasm.OpI32Load:  {typ: ssa.TypeI32, accessSize: 4},
	wasm.OpI64Load:  {typ: ssa.TypeI64, accessSize: 8},
	wasm.OpF32Load:  {typ: ssa.TypeF32, accessSize: 4},
	wasm.OpF64Load:  {typ: ssa.TypeF64, accessSize: 8},

	wasm.OpI32Load8S:  {typ: ssa.TypeI32, accessSize: 1, ext: ssa.OpcodeSload8},
	wasm.OpI32Load8U:  {typ: ssa.TypeI32, accessSize: 1, ext: ssa.OpcodeUload8},
	wasm.OpI32Load16S: {typ: ssa.TypeI32, accessSize: 2, ext: ssa.OpcodeSload16},
	wasm.OpI32Load16U: {typ: ssa.TypeI32, accessSize: 2, ext: ssa.OpcodeUload16},

	wasm.OpI64Load8S:  {typ: ssa.TypeI64, accessSize: 1, ext: ssa.OpcodeSload8, to64: true},
	wasm.OpI64Load8U:  {typ: ssa.TypeI64, accessSize: 1, ext: ssa.OpcodeUload8, to64: true},
	wasm.OpI64Load16S: {typ: ssa.TypeI64, accessSize: 2, ext: ssa.OpcodeSload16, to64: true},
	wasm.OpI64Load16U: {typ: ssa.TypeI64, accessSize: 2, ext: ssa.OpcodeUload16, to64: true},
	wasm.OpI64Load32S: {typ: ssa.TypeI64, accessSize: 4, ext: ssa.OpcodeSload32, to64: true},
	wasm.OpI64Load32U: {typ: ssa.TypeI64, accessSize: 4, ext: ssa.OpcodeUload32, to64: true},

	wasm.OpI32Store: {typ: ssa.TypeI32, accessSize: 4, store: true},
	wasm.OpI64Store: {typ: ssa.TypeI64, accessSize: 8, store: true},
	wasm.OpF32Store: {typ: ssa.TypeF32, accessSize: 4, store: true},
	wasm.OpF64Store: {typ: ssa.TypeF64, accessSize: 8, store: true},

	wasm.OpI32Store8:  {typ: ssa.TypeI32, accessSize: 1, store: true, trunc: ssa.OpcodeIstore8},
	wasm.OpI32Store16: {typ: ssa.TypeI32, accessSize: 2, store: true, trunc: ssa.OpcodeIstore16},
	wasm.OpI64Store8:  {typ: ssa.TypeI64, accessSize: 1, store: true, trunc: ssa.OpcodeIstore8},
	wasm.OpI64Store16: {typ: ssa.TypeI64, accessSize: 2, store: true, trunc: ssa.OpcodeIstore16},
	wasm.OpI64Store32: {typ: ssa.TypeI64, accessSize: 4, store: true, trunc: ssa.OpcodeIstore32},
}

func (t *Translator) memoryOp(op wasm.Operator) error {
	info, ok := memOpTable[op.Op]
	if !ok {
		return newError(MalformedStream, t.state.pc, "unsupported memory opcode 0x%02x", byte(op.Op))
	}

	if info.store {
		value := t.state.pop()
		addr := t.state.pop()
		host := t.runtime.MemoryAddress(t.b, addr, op.MemArgOffset, info.accessSize)
		instr := t.b.AllocateInstruction()
		if info.trunc != 0 {
			instr.AsTruncatingStore(info.trunc, value, host, 0)
		} else {
			instr.AsStore(value, host, 0)
		}
		t.b.InsertInstruction(instr)
		return nil
	}

	addr := t.state.pop()
	host := t.runtime.MemoryAddress(t.b, addr, op.MemArgOffset, info.accessSize)
	instr := t.b.AllocateInstruction()
	if info.ext != 0 {
		instr.AsExtLoad(info.ext, host, 0, info.to64)
	} else {
		instr.AsLoad(host, 0, info.typ)
	}
	t.b.InsertInstruction(instr)
	t.state.push(instr.Return())
	return nil
}
