package translator

import "github.com/wasmssa/wasmssa/internal/ssa"

// controlFrameKind classifies an open control-flow construct; End/Else
// handling branches on it.
type controlFrameKind byte

const (
	controlFrameKindFunction controlFrameKind = iota + 1
	controlFrameKindBlock
	controlFrameKindLoop
	controlFrameKindIfWithoutElse
	controlFrameKindIfWithElse
)

// controlFrame is one entry of the Control Engine's frame stack: one per
// open block/loop/if/function. Grounded on the teacher's wazevo frontend
// controlFrame, extended with the arg-cloning an `if` needs to restart its
// else arm from the same parameters (clonedArgs, control.go).
type controlFrame struct {
	kind controlFrameKind

	// originalStackLen is the operand-stack depth when this frame was
	// entered, minus its param count, letting End/Else reset the stack.
	originalStackLen int

	// blk is the loop header (for a loop) or the else-block (for an if).
	blk ssa.BasicBlock
	// followingBlock is entered once this construct's matching `end` is
	// reached.
	followingBlock ssa.BasicBlock

	paramTypes, resultTypes []byte // wasm.ValueType, avoiding an import cycle concern is moot but keeps this file self-contained

	// clonedArgs holds the `if`'s block-params, re-pushed onto the stack
	// when translating the (possibly implicit) else arm.
	clonedArgs []ssa.Value
}

func (f *controlFrame) isLoop() bool { return f.kind == controlFrameKindLoop }

// branchTarget returns where a br/br_if/br_table naming this frame's depth
// actually transfers control to: a loop's own header (re-entry, per wasm's
// "loop labels its start") for loop frames, or the construct's exit
// (followingBlock) for every other kind.
func (f *controlFrame) branchTarget() ssa.BasicBlock {
	if f.isLoop() {
		return f.blk
	}
	return f.followingBlock
}

// branchArity is the number of values a branch naming this frame's depth
// carries: a loop's param count (the header's formal parameters) or the
// construct's result count (followingBlock's formal parameters).
func (f *controlFrame) branchArity() int {
	if f.isLoop() {
		return len(f.paramTypes)
	}
	return len(f.resultTypes)
}

// loweringState holds the Operator Dispatcher's and Control/Value Engines'
// shared per-function mutable state: the operand stack, the control-frame
// stack, and the unreachable-code tracking (the `unreachable` bool plus
// realUnreachableDepth) spec.md calls out as the most bug-prone area of
// this design.
type loweringState struct {
	values        []ssa.Value
	controlFrames []controlFrame

	// unreachable is true while translating code that can never execute:
	// set by `unreachable`, `br`, `br_table` and `return`, cleared at the
	// `end`/`else` that closes the frame it was set within.
	unreachable bool

	// realUnreachableDepth counts block/loop/if frames opened while
	// unreachable is already true. Their bodies are skipped entirely: no
	// BasicBlock is allocated and no instruction is emitted for them, only
	// a controlFrame bookkeeping entry so the matching end/else can still
	// be consumed.
	realUnreachableDepth int

	pc int
}

func (l *loweringState) reset() {
	l.values = l.values[:0]
	l.controlFrames = l.controlFrames[:0]
	l.unreachable = false
	l.realUnreachableDepth = 0
	l.pc = 0
}

func (l *loweringState) pop() ssa.Value {
	tail := len(l.values) - 1
	v := l.values[tail]
	l.values = l.values[:tail]
	return v
}

func (l *loweringState) push(v ssa.Value) { l.values = append(l.values, v) }

// popN pops n values in original (left-to-right) push order.
func (l *loweringState) popN(n int) []ssa.Value {
	if n == 0 {
		return nil
	}
	tail := len(l.values)
	begin := tail - n
	ret := make([]ssa.Value, n)
	copy(ret, l.values[begin:tail])
	l.values = l.values[:begin]
	return ret
}

// peekN returns (without popping) a copy of the top n values, in push
// order, used to supply an enclosing block's exit/branch arguments.
func (l *loweringState) peekN(n int) []ssa.Value {
	if n == 0 {
		return nil
	}
	tail := len(l.values)
	ret := make([]ssa.Value, n)
	copy(ret, l.values[tail-n:tail])
	return ret
}

func (l *loweringState) ctrlPush(f controlFrame) { l.controlFrames = append(l.controlFrames, f) }

func (l *loweringState) ctrlPop() controlFrame {
	tail := len(l.controlFrames) - 1
	f := l.controlFrames[tail]
	l.controlFrames = l.controlFrames[:tail]
	return f
}

// ctrlAt returns a pointer to the frame `depth` levels out from the
// innermost (0 = innermost), matching br/br_if/br_table's relative-depth
// immediate.
func (l *loweringState) ctrlAt(depth int) *controlFrame {
	return &l.controlFrames[len(l.controlFrames)-1-depth]
}
