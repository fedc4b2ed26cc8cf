package interp_test

import (
	"bytes"
	"testing"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasmssa/wasmssa/internal/moduledriver"
	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// addModuleBytes is the module BenchmarkEngines runs through each candidate
// engine (internal/interp, wasmtime-go, wasmer-go) as a subtest, following
// the teacher's tests/bench/bench_test.go shape, scaled down to one
// hand-encoded module instead of an embedded TinyGo binary.
func addModuleBytes() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	b.Write([]byte{0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f})
	b.Write([]byte{0x03, 0x02, 0x01, 0x00})
	b.Write([]byte{0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00})
	b.Write([]byte{0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b})
	return b.Bytes()
}

func BenchmarkEngines(b *testing.B) {
	raw := addModuleBytes()

	b.Run("interp", func(b *testing.B) {
		m, inst, err := wasm.Decode(bytes.NewReader(raw))
		if err != nil {
			b.Fatal(err)
		}
		rt := runtimeadapter.NewStandalone(nil, inst.MemoryInitialPages, 1, inst.TableSize)
		result, err := moduledriver.TranslateModule(m, rt, nil)
		if err != nil {
			b.Fatal(err)
		}
		idx := result.Exports["add"]

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := result.Module.Call(idx, []uint64{1, 2}); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("wasmtime", func(b *testing.B) {
		engine := wasmtime.NewEngine()
		mod, err := wasmtime.NewModule(engine, raw)
		if err != nil {
			b.Fatal(err)
		}
		store := wasmtime.NewStore(engine)
		instance, err := wasmtime.NewInstance(store, mod, nil)
		if err != nil {
			b.Fatal(err)
		}
		add := instance.GetExport(store, "add").Func()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := add.Call(store, int32(1), int32(2)); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("wasmer", func(b *testing.B) {
		engine := wasmer.NewEngine()
		store := wasmer.NewStore(engine)
		mod, err := wasmer.NewModule(store, raw)
		if err != nil {
			b.Fatal(err)
		}
		instance, err := wasmer.NewInstance(mod, wasmer.NewImportObject())
		if err != nil {
			b.Fatal(err)
		}
		add, err := instance.Exports.GetFunction("add")
		if err != nil {
			b.Fatal(err)
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := add(int32(1), int32(2)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
