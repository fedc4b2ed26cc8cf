// Command wasm2ssa reads a wasm binary, translates every locally-defined
// function to SSA form, and optionally executes one exported function
// in-process. Grounded on original_source/src/main.rs's cton-util: the same
// two knobs (verbose dump, execute) reimplemented with urfave/cli in place
// of docopt.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/wasmssa/wasmssa/api"
	"github.com/wasmssa/wasmssa/internal/moduledriver"
	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/ssa"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// defaultMaxMemoryPages is the wasm MVP's own ceiling (4GiB of linear
// memory), used when a module declares no explicit memory maximum.
const defaultMaxMemoryPages = 65536

func main() {
	app := &cli.App{
		Name:  "wasm2ssa",
		Usage: "translate a wasm module's functions to SSA form",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log translation progress to stderr and print each function's block count"},
			&cli.StringFlag{Name: "run", Usage: "name of an exported function to execute after translation"},
			&cli.BoolFlag{Name: "parallel", Usage: "translate functions across a worker pool"},
		},
		ArgsUsage: "<file.wasm>",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one input file is required", 1)
	}
	path := c.Args().First()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	m, inst, err := wasm.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	runtime := newStandalone(inst)

	cfg := moduledriver.NewTranslatorConfig().
		WithParallelTranslation(c.Bool("parallel"))
	if c.Bool("verbose") {
		cfg = cfg.WithLogger(log.New(os.Stderr, "wasm2ssa: ", 0))
	}

	result, err := moduledriver.TranslateModule(m, runtime, cfg)
	if err != nil {
		return fmt.Errorf("translating %s: %w", path, err)
	}
	fmt.Printf("translated %d function(s) from %s\n", len(result.Functions), path)

	if c.Bool("verbose") {
		for idx, fn := range result.Functions {
			fmt.Printf("function %d: %d block(s)\n", idx, fn.BlockCount())
		}
	}

	target := c.String("run")
	if target == "" {
		return nil
	}
	funcIdx, ok := result.Exports[target]
	if !ok {
		return fmt.Errorf("no export named %q", target)
	}
	results, err := result.Module.Call(funcIdx, nil)
	if err != nil {
		return fmt.Errorf("executing %q: %w", target, err)
	}
	fmt.Printf("%q returned %s\n", target, formatResults(m.FuncTypeIndexSpace(funcIdx), results))
	return nil
}

// formatResults renders raw interp results in each result's declared type,
// decoding f32/f64 bit patterns back into floating point text instead of
// printing their raw uint64 encoding.
func formatResults(sig *wasm.FunctionType, results []uint64) string {
	parts := make([]string, len(results))
	for i, bits := range results {
		if sig == nil || i >= len(sig.Results) {
			parts[i] = fmt.Sprintf("%d", bits)
			continue
		}
		switch sig.Results[i] {
		case wasm.ValueTypeF32:
			parts[i] = fmt.Sprintf("%g", api.DecodeF32(bits))
		case wasm.ValueTypeF64:
			parts[i] = fmt.Sprintf("%g", api.DecodeF64(bits))
		case wasm.ValueTypeI64:
			parts[i] = fmt.Sprintf("%d", int64(bits))
		default:
			parts[i] = fmt.Sprintf("%d", int32(bits))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// newStandalone builds a runtimeadapter.Standalone from a decoded module's
// instantiation data and wires its global initializers and element-section
// table entries before any function is translated, matching
// standalone.rs's instantiate() sequencing.
func newStandalone(inst *wasm.Instantiation) *runtimeadapter.Standalone {
	globalTypes := make([]ssa.Type, len(inst.GlobalTypes))
	for i, vt := range inst.GlobalTypes {
		globalTypes[i] = toSSAType(vt)
	}

	maxPages := inst.MemoryMaxPages
	if !inst.HasMemoryMax {
		maxPages = defaultMaxMemoryPages
	}

	s := runtimeadapter.NewStandalone(globalTypes, inst.MemoryInitialPages, maxPages, inst.TableSize)
	for i, bits := range inst.GlobalInits {
		s.SetGlobalInit(uint32(i), bits)
	}
	for slot, funcIdx := range inst.TableElements {
		s.SetTableFunction(int(slot), funcIdx)
	}
	return s
}

func toSSAType(t wasm.ValueType) ssa.Type {
	switch t {
	case wasm.ValueTypeI32:
		return ssa.TypeI32
	case wasm.ValueTypeI64:
		return ssa.TypeI64
	case wasm.ValueTypeF32:
		return ssa.TypeF32
	case wasm.ValueTypeF64:
		return ssa.TypeF64
	default:
		panic("wasm2ssa: unsupported global type")
	}
}
