package translator

import (
	"github.com/wasmssa/wasmssa/internal/ssa"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// This file is the Operator Dispatcher (spec.md §4.1): it drives
// OperatorReader and routes each decoded Operator either to the Control
// Engine (control.go, always invoked — block/loop/if/else/end must update
// the frame stack and unreachable-depth counters even inside dead code) or,
// for every other opcode, to the Control or Value Engine only while the
// current position is reachable. Unreachable operators are never even
// looked at beyond this routing: no instruction is emitted and the operand
// stack is left untouched, per spec.md §4.1's "skip, don't simulate" rule
// for truly dead code.

// lowerBody drives translation of the function body just wrapped by entry,
// pushing the implicit function-level control frame and consuming
// operators until the stream (and so the function, whose top-level `end`
// is the stream's last byte) is exhausted.
func (t *Translator) lowerBody(entry ssa.BasicBlock) error {
	t.b.Seal(entry)
	t.state.ctrlPush(controlFrame{kind: controlFrameKindFunction, resultTypes: t.sig.Results})

	for !t.operators.Done() {
		t.state.pc++
		op, err := t.operators.Read()
		if err != nil {
			return newError(MalformedStream, t.state.pc, "%s", err)
		}
		if err := t.dispatch(op); err != nil {
			return err
		}
	}
	return nil
}

func (t *Translator) dispatch(op wasm.Operator) error {
	switch op.Op {
	case wasm.OpBlock:
		return t.openBlock(op.BlockType)
	case wasm.OpLoop:
		return t.openLoop(op.BlockType)
	case wasm.OpIf:
		return t.openIf(op.BlockType)
	case wasm.OpElse:
		return t.handleElse()
	case wasm.OpEnd:
		return t.handleEnd()
	}

	if t.state.unreachable {
		return nil
	}

	switch op.Op {
	case wasm.OpUnreachable:
		return t.unreachableOp()
	case wasm.OpReturn:
		return t.returnOp()
	case wasm.OpBr:
		return t.br(op.RelativeDepth)
	case wasm.OpBrIf:
		return t.brIf(op.RelativeDepth)
	case wasm.OpBrTable:
		return t.brTable(op.TableTargets, op.TableDefault)
	default:
		return t.lowerValueOp(op)
	}
}
