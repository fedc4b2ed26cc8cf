package wasm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmssa/wasmssa/internal/wasm"
)

// addModuleBytes hand-encodes a minimal module exporting a function "add"
// of type (i32, i32) -> i32, computing local.get 0 + local.get 1. Byte
// layout mirrors the wasm MVP binary format section-by-section.
func addModuleBytes() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}) // magic + version

	// type section: one (i32,i32)->i32 signature
	b.Write([]byte{0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f})
	// function section: one function, type index 0
	b.Write([]byte{0x03, 0x02, 0x01, 0x00})
	// export section: "add" -> func 0
	b.Write([]byte{0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00})
	// code section: one body, no locals, local.get 0; local.get 1; i32.add; end
	b.Write([]byte{0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b})

	return b.Bytes()
}

func TestDecodeAddModule(t *testing.T) {
	m, inst, err := wasm.Decode(bytes.NewReader(addModuleBytes()))
	require.NoError(t, err)

	require.Len(t, m.Types, 1)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.Types[0].Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.Types[0].Results)

	require.Equal(t, uint32(0), m.ImportFunctionCount)
	require.Empty(t, m.Imports)

	require.Equal(t, []uint32{0}, m.FunctionTypeIndices)
	require.Len(t, m.Code, 1)
	require.Empty(t, m.Code[0].LocalTypes)
	require.Equal(t, []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}, m.Code[0].Body)

	require.Equal(t, []wasm.Export{{Name: "add", Index: 0}}, m.Exports)

	require.False(t, inst.HasMemoryMax)
	require.Zero(t, inst.MemoryInitialPages)
	require.Zero(t, inst.TableSize)
	require.False(t, inst.HasStart)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, _, err := wasm.Decode(bytes.NewReader([]byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00}))
	require.Error(t, err)
}

func TestDecodeRejectsUnsupportedConstExpr(t *testing.T) {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	// global section: one i32 mutable global initialized via global.get (unsupported)
	b.Write([]byte{0x06, 0x04, 0x01, 0x7f, 0x01, 0x23})
	_, _, err := wasm.Decode(bytes.NewReader(b.Bytes()))
	require.Error(t, err)
}
