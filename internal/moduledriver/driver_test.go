package moduledriver_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmssa/wasmssa/internal/moduledriver"
	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/translator"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// addModuleBytes hand-encodes a module exporting "add": (i32,i32)->i32
// computing local.get 0 + local.get 1.
func addModuleBytes() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	b.Write([]byte{0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f})
	b.Write([]byte{0x03, 0x02, 0x01, 0x00})
	b.Write([]byte{0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00})
	b.Write([]byte{0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b})
	return b.Bytes()
}

// badModuleBytes hand-encodes a module exporting "bad", whose body contains
// an opcode (0xff) the translator does not understand.
func badModuleBytes() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	b.Write([]byte{0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f}) // () -> i32
	b.Write([]byte{0x03, 0x02, 0x01, 0x00})
	b.Write([]byte{0x07, 0x07, 0x01, 0x03, 'b', 'a', 'd', 0x00, 0x00})
	// body: bogus opcode then end
	b.Write([]byte{0x0a, 0x05, 0x01, 0x03, 0x00, 0xff, 0x0b})
	return b.Bytes()
}

func TestTranslateModuleSequential(t *testing.T) {
	m, inst, err := wasm.Decode(bytes.NewReader(addModuleBytes()))
	require.NoError(t, err)

	rt := runtimeadapter.NewStandalone(nil, inst.MemoryInitialPages, 1, inst.TableSize)
	result, err := moduledriver.TranslateModule(m, rt, nil)
	require.NoError(t, err)
	require.Len(t, result.Functions, 1)
	require.Equal(t, map[string]uint32{"add": 0}, result.Exports)

	out, err := result.Module.Call(result.Exports["add"], []uint64{40, 2})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, out)
}

func TestTranslateModuleParallelMatchesSequential(t *testing.T) {
	m, inst, err := wasm.Decode(bytes.NewReader(addModuleBytes()))
	require.NoError(t, err)

	rt := runtimeadapter.NewStandalone(nil, inst.MemoryInitialPages, 1, inst.TableSize)
	cfg := moduledriver.NewTranslatorConfig().WithParallelTranslation(true).WithWorkers(4)
	result, err := moduledriver.TranslateModule(m, rt, cfg)
	require.NoError(t, err)

	out, err := result.Module.Call(result.Exports["add"], []uint64{7, 35})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, out)
}

func TestTranslateModuleWrapsError(t *testing.T) {
	m, inst, err := wasm.Decode(bytes.NewReader(badModuleBytes()))
	require.NoError(t, err)

	rt := runtimeadapter.NewStandalone(nil, inst.MemoryInitialPages, 1, inst.TableSize)
	result, err := moduledriver.TranslateModule(m, rt, nil)
	require.Nil(t, result)
	require.Error(t, err)

	var mdErr *moduledriver.Error
	require.True(t, errors.As(err, &mdErr))
	require.Equal(t, uint32(0), mdErr.FuncIndex)
	require.Equal(t, "bad", mdErr.ExportName)

	var translationErr *translator.TranslationError
	require.True(t, errors.As(mdErr.Unwrap(), &translationErr))
}

func TestTranslateModuleMaxFunctionBodySize(t *testing.T) {
	m, inst, err := wasm.Decode(bytes.NewReader(addModuleBytes()))
	require.NoError(t, err)

	rt := runtimeadapter.NewStandalone(nil, inst.MemoryInitialPages, 1, inst.TableSize)
	cfg := moduledriver.NewTranslatorConfig().WithMaxFunctionBodySize(2)
	result, err := moduledriver.TranslateModule(m, rt, cfg)
	require.Nil(t, result)
	require.Error(t, err)
	var mdErr *moduledriver.Error
	require.True(t, errors.As(err, &mdErr))
	require.Equal(t, "add", mdErr.ExportName)
}
