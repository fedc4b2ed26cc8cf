// Package moduledriver sequences per-function translation across every
// locally-defined function of a wasm.Module, the way wasm2cretonne's
// module_translator.rs and sections_translator.rs drive ModuleEnvironment
// callbacks function-by-function. It owns none of the per-function
// lowering logic itself (internal/translator does that); this package only
// decides *which* functions to translate, in *what* order, resolves export
// names, and assembles the result into something internal/interp can run.
package moduledriver

import (
	"fmt"
	"sync"

	"github.com/wasmssa/wasmssa/internal/interp"
	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/translator"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// Result is everything TranslateModule produces: one interp.Function per
// locally-defined function, keyed by its index in the module's combined
// function index space, the export name table, and an interp.Module ready
// to execute any of them.
type Result struct {
	Functions map[uint32]*interp.Function
	Exports   map[string]uint32
	Module    *interp.Module
}

// Error reports that translating the function at FuncIndex failed, per
// spec.md §7's no-partial-output rule: TranslateModule returns a nil Result
// alongside this, never a Result missing some functions.
type Error struct {
	FuncIndex  uint32
	ExportName string // "" if the function is not exported
	Err        error
}

func (e *Error) Error() string {
	if e.ExportName != "" {
		return fmt.Sprintf("translating function %d (export %q): %s", e.FuncIndex, e.ExportName, e.Err)
	}
	return fmt.Sprintf("translating function %d: %s", e.FuncIndex, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TranslateModule translates every locally-defined function of m and
// assembles the result into an interp.Module for optional execution. cfg
// may be nil, in which case NewTranslatorConfig()'s defaults apply.
func TranslateModule(m *wasm.Module, runtime runtimeadapter.RuntimeAdapter, cfg *TranslatorConfig) (*Result, error) {
	if cfg == nil {
		cfg = NewTranslatorConfig()
	}

	exports := exportNames(m)

	localCount := len(m.Code)
	funcs := make(map[uint32]*interp.Function, localCount)

	cfg.logger.Printf("moduledriver: translating %d function(s) (parallel=%t)", localCount, cfg.parallelTranslation)

	if cfg.maxFunctionBodySize > 0 {
		for local, code := range m.Code {
			if uint32(len(code.Body)) > cfg.maxFunctionBodySize {
				funcIdx := m.ImportFunctionCount + uint32(local)
				return nil, &Error{FuncIndex: funcIdx, ExportName: exportNameOf(exports, funcIdx), Err: fmt.Errorf("function body of %d bytes exceeds the %d byte limit", len(code.Body), cfg.maxFunctionBodySize)}
			}
		}
	}

	var err error
	if cfg.parallelTranslation && localCount > 1 {
		funcs, err = translateParallel(m, runtime, cfg, exports)
	} else {
		funcs, err = translateSequential(m, runtime, cfg, exports)
	}
	if err != nil {
		cfg.logger.Printf("moduledriver: translation failed: %s", err)
		return nil, err
	}
	cfg.logger.Printf("moduledriver: translated %d function(s)", len(funcs))

	return &Result{
		Functions: funcs,
		Exports:   exports,
		Module:    &interp.Module{Functions: funcs, Runtime: runtime},
	}, nil
}

// exportNames builds the export-name -> funcIdx table returned in
// Result.Exports (exportNameOf reverses it to annotate translation errors). Every entry of the export section is
// treated as naming a function: the minimal wasm.Module data model this
// repo carries (spec.md §6) has no memory/global/table sections of its own
// for an export to otherwise point at.
func exportNames(m *wasm.Module) map[string]uint32 {
	names := make(map[string]uint32, len(m.Exports))
	for _, e := range m.Exports {
		names[e.Name] = e.Index
	}
	return names
}

// exportNameOf is the reverse lookup used when wrapping a translation
// error: it wants the export name for a given function index, not the
// other way around.
func exportNameOf(exports map[string]uint32, funcIdx uint32) string {
	for name, idx := range exports {
		if idx == funcIdx {
			return name
		}
	}
	return ""
}

func translateSequential(m *wasm.Module, runtime runtimeadapter.RuntimeAdapter, cfg *TranslatorConfig, exports map[string]uint32) (map[uint32]*interp.Function, error) {
	t := translator.New(m, runtime, cfg.translatorOptions()...)
	funcs := make(map[uint32]*interp.Function, len(m.Code))

	for local := range m.Code {
		funcIdx := m.ImportFunctionCount + uint32(local)
		if err := t.TranslateFunction(funcIdx); err != nil {
			return nil, &Error{FuncIndex: funcIdx, ExportName: exportNameOf(exports, funcIdx), Err: err}
		}
		funcs[funcIdx] = interp.Compile(t.Builder())
	}
	return funcs, nil
}

// translateParallel fans function translation out across cfg.workers
// goroutines. Each worker owns its own Translator (and so its own
// ssa.Builder) since a Translator resets and reuses its builder between
// calls and cannot be shared; the shared RuntimeAdapter is safe to use
// concurrently because translation only reads its compile-time state
// (global/table layout) to emit addressing instructions, never mutates it.
func translateParallel(m *wasm.Module, runtime runtimeadapter.RuntimeAdapter, cfg *TranslatorConfig, exports map[string]uint32) (map[uint32]*interp.Function, error) {
	localCount := len(m.Code)
	workers := cfg.workers
	if workers > localCount {
		workers = localCount
	}

	jobs := make(chan int, localCount)
	for local := 0; local < localCount; local++ {
		jobs <- local
	}
	close(jobs)

	results := make([]*interp.Function, localCount)
	errs := make([]*Error, workers)
	stop := make(chan struct{})
	var stopOnce sync.Once

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			t := translator.New(m, runtime, cfg.translatorOptions()...)
			for local := range jobs {
				select {
				case <-stop:
					return
				default:
				}
				funcIdx := m.ImportFunctionCount + uint32(local)
				if err := t.TranslateFunction(funcIdx); err != nil {
					errs[w] = &Error{FuncIndex: funcIdx, ExportName: exportNameOf(exports, funcIdx), Err: err}
					stopOnce.Do(func() { close(stop) })
					return
				}
				results[local] = interp.Compile(t.Builder())
			}
		}(w)
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}

	funcs := make(map[uint32]*interp.Function, localCount)
	for local, fn := range results {
		if fn == nil {
			continue
		}
		funcs[m.ImportFunctionCount+uint32(local)] = fn
	}
	return funcs, nil
}
