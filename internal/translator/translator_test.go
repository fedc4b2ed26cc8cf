package translator_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmssa/wasmssa/internal/interp"
	"github.com/wasmssa/wasmssa/internal/moduledriver"
	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/ssa"
	"github.com/wasmssa/wasmssa/internal/translator"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// buildModule wraps the magic/version header plus a one-function module
// using funcType as its sole type section entry and body as its code
// section entry, with no locals beyond funcType's params. Every test below
// exercises the translator end-to-end by running the translated function
// through internal/interp, rather than asserting against ssa.Builder
// internals directly.
func buildModule(t *testing.T, params, results []byte, body []byte) *wasm.Module {
	t.Helper()
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	var typ bytes.Buffer
	typ.WriteByte(0x60)
	typ.WriteByte(byte(len(params)))
	typ.Write(params)
	typ.WriteByte(byte(len(results)))
	typ.Write(results)
	b.WriteByte(0x01)
	b.WriteByte(byte(1 + typ.Len()))
	b.WriteByte(0x01)
	b.Write(typ.Bytes())

	b.Write([]byte{0x03, 0x02, 0x01, 0x00})

	var code bytes.Buffer
	code.WriteByte(0x00) // no locals beyond params
	code.Write(body)
	b.WriteByte(0x0a)
	b.WriteByte(byte(1 + 1 + code.Len()))
	b.WriteByte(0x01)
	b.WriteByte(byte(code.Len()))
	b.Write(code.Bytes())

	m, _, err := wasm.Decode(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)
	return m
}

func runFunc(t *testing.T, m *wasm.Module, args ...uint64) ([]uint64, error) {
	t.Helper()
	tr := translator.New(m, runtimeadapter.NewDummy())
	require.NoError(t, tr.TranslateFunction(0))
	fn := interp.Compile(tr.Builder())
	mod := &interp.Module{Functions: map[uint32]*interp.Function{0: fn}}
	return mod.Call(0, args)
}

const i32 = 0x7f

func TestTranslateI32Add(t *testing.T) {
	m := buildModule(t, []byte{i32, i32}, []byte{i32}, []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b})
	out, err := runFunc(t, m, 19, 23)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, out)
}

func TestTranslateI32Rotl(t *testing.T) {
	m := buildModule(t, []byte{i32}, []byte{i32}, []byte{0x20, 0x00, 0x41, 0x03, 0x77, 0x0b})
	out, err := runFunc(t, m, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{8}, out)
}

func TestTranslateI32Eq(t *testing.T) {
	m := buildModule(t, []byte{i32, i32}, []byte{i32}, []byte{0x20, 0x00, 0x20, 0x01, 0x46, 0x0b})

	out, err := runFunc(t, m, 5, 5)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, out)

	out, err = runFunc(t, m, 5, 6)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, out)
}

func TestTranslateI32DivSByZeroTraps(t *testing.T) {
	m := buildModule(t, []byte{i32, i32}, []byte{i32}, []byte{0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b})
	_, err := runFunc(t, m, 10, 0)
	require.Error(t, err)
}

// TestTranslateIfElseBindsBlockResult exercises control.go's if/else
// lowering: each arm pushes a different constant, and the result merges at
// the following block exactly like any other wasm structured control
// result, verifying block-param identity survives Compile's snapshot.
func TestTranslateIfElseBindsBlockResult(t *testing.T) {
	body := []byte{
		0x20, 0x00, // local.get 0
		0x04, i32, // if (result i32)
		0x41, 0x01, // i32.const 1
		0x05,       // else
		0x41, 0x02, // i32.const 2
		0x0b, // end (if)
		0x0b, // end (function)
	}
	m := buildModule(t, []byte{i32}, []byte{i32}, body)

	out, err := runFunc(t, m, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, out)

	out, err = runFunc(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, out)
}

// TestTranslateSelect exercises value.go's select lowering: wasm pops
// condition, false-value, true-value in that order from the top of the
// stack (spec.md §4.3), so a non-zero condition must yield the operand
// pushed first (true), not the one pushed last.
func TestTranslateSelect(t *testing.T) {
	body := []byte{
		0x41, 0x0b, // i32.const 11 (true value)
		0x41, 0x16, // i32.const 22 (false value)
		0x20, 0x00, // local.get 0 (condition)
		0x1b, // select
		0x0b, // end
	}
	m := buildModule(t, []byte{i32}, []byte{i32}, body)

	out, err := runFunc(t, m, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{11}, out)

	out, err = runFunc(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{22}, out)
}

// TestTranslateStoreThenLoad exercises value.go's memoryOp store path: a
// wasm store pops value, then address, from the top of the stack (spec.md
// §4.3's "Stores pop value then address"). Storing a distinguishable value
// at a distinguishable address and reading it back at that same address
// would still pass if the two operands were swapped consistently, so this
// stores two different values at two different addresses and confirms each
// lands where its own store addressed it, not at the other store's address.
func TestTranslateStoreThenLoad(t *testing.T) {
	body := []byte{
		0x41, 0x00, // i32.const 0 (addr)
		0x41, 0x2a, // i32.const 42 (value)
		0x36, 0x02, 0x00, // i32.store align=2 offset=0
		0x41, 0x04, // i32.const 4 (addr)
		0x41, 0x77, // i32.const -9 (single-byte signed LEB128: 0x77 -> -9)
		0x36, 0x02, 0x00, // i32.store align=2 offset=0
		0x20, 0x00, // local.get 0 (addr to load back)
		0x28, 0x02, 0x00, // i32.load align=2 offset=0
		0x0b, // end
	}
	m := buildModule(t, []byte{i32}, []byte{i32}, body)

	out, err := runFunc(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, out)

	out, err = runFunc(t, m, 4)
	require.NoError(t, err)
	require.Equal(t, []uint64{uint64(uint32(int32(-9)))}, out)
}

// TestTranslateBrIf exercises control.go's br_if lowering (spec.md scenario
// S3): br_if only consumes its branch arguments when actually taken, since
// the fall-through path needs them too, so the untaken case must still see
// the value it pushed before the br_if.
func TestTranslateBrIf(t *testing.T) {
	body := []byte{
		0x02, i32, // block (result i32)
		0x41, 0x01, // i32.const 1
		0x20, 0x00, // local.get 0 (cond)
		0x0d, 0x00, // br_if 0
		0x1a,       // drop
		0x41, 0x02, // i32.const 2
		0x0b, // end (block)
		0x0b, // end (function)
	}
	m := buildModule(t, []byte{i32}, []byte{i32}, body)

	out, err := runFunc(t, m, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, out)

	out, err = runFunc(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, out)
}

// TestTranslateBrTable exercises control.go's br_table lowering (spec.md
// scenario S5), including its per-depth trampoline synthesis for non-zero
// branch arity: three nested blocks, each adding a distinct marker to the
// value carried past its own exit, so the selected depth is recoverable
// from the final result.
func TestTranslateBrTable(t *testing.T) {
	body := []byte{
		0x02, i32, // block (result i32)  -- depth 2
		0x02, i32, // block (result i32)  -- depth 1
		0x02, i32, // block (result i32)  -- depth 0
		0x41, 0x0a, // i32.const 10
		0x20, 0x00, // local.get 0 (selector)
		0x0e, 0x02, 0x00, 0x01, 0x02, // br_table [0, 1] default=2
		0x0b,       // end block0
		0x41, 0x01, // i32.const 1
		0x6a,       // i32.add
		0x0b,       // end block1
		0x41, 0x64, // i32.const 100
		0x6a,       // i32.add
		0x0b, // end block2
		0x0b, // end function
	}
	m := buildModule(t, []byte{i32}, []byte{i32}, body)

	out, err := runFunc(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{111}, out)

	out, err = runFunc(t, m, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{110}, out)

	out, err = runFunc(t, m, 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, out)

	out, err = runFunc(t, m, 99)
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, out)
}

// TestTranslateLoopBrDeadExit exercises control.go's handling of an
// unconditional back edge (spec.md scenario S4, property 9): `loop; br 0;
// end` never reaches its own exit block, since the only branch out of the
// loop targets its header again. finishConstruct must still leave that
// dead exit block terminated (a Trap, since it can never run) rather than
// empty, or ssa.Verify rejects the function even though the input is
// well-formed. The function diverges, so this only checks that translation
// and verification succeed — it is never executed.
func TestTranslateLoopBrDeadExit(t *testing.T) {
	body := []byte{
		0x03, 0x40, // loop (no result)
		0x0c, 0x00, // br 0
		0x0b, // end (loop)
		0x0b, // end (function)
	}
	m := buildModule(t, nil, nil, body)

	tr := translator.New(m, runtimeadapter.NewDummy())
	require.NoError(t, tr.TranslateFunction(0))
	require.NoError(t, ssa.Verify(tr.Builder()))
}

// TestTranslateCall exercises value.go's call lowering (spec.md scenario
// S6) across two functions, run through moduledriver so both the caller
// and the callee are compiled into the same interp.Module.
func TestTranslateCall(t *testing.T) {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	// type section: one (i32)->(i32) signature, shared by both functions
	b.Write([]byte{0x01, 0x06, 0x01, 0x60, 0x01, i32, 0x01, i32})
	// function section: two functions, both type index 0
	b.Write([]byte{0x03, 0x03, 0x02, 0x00, 0x00})
	// code section: func0 calls func1(x) then adds 1; func1 doubles its arg
	b.Write([]byte{
		0x0a, 0x13, 0x02,
		0x09, 0x00, 0x20, 0x00, 0x10, 0x01, 0x41, 0x01, 0x6a, 0x0b, // func0: local.get 0; call 1; i32.const 1; i32.add; end
		0x07, 0x00, 0x20, 0x00, 0x20, 0x00, 0x6a, 0x0b, // func1: local.get 0; local.get 0; i32.add; end
	})

	m, inst, err := wasm.Decode(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)

	rt := runtimeadapter.NewStandalone(nil, inst.MemoryInitialPages, 1, inst.TableSize)
	result, err := moduledriver.TranslateModule(m, rt, nil)
	require.NoError(t, err)

	out, err := result.Module.Call(0, []uint64{20})
	require.NoError(t, err)
	require.Equal(t, []uint64{41}, out)
}
