// Package translator implements the per-function wasm-to-SSA translator:
// the Operator Dispatcher, Control Engine, Value Engine and Import
// Interner described in spec.md. It has no notion of a whole program or
// executable artifact; internal/moduledriver sequences calls into it across
// every function of a module.
package translator

import (
	"github.com/wasmssa/wasmssa/internal/runtimeadapter"
	"github.com/wasmssa/wasmssa/internal/ssa"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// Translator lowers one wasm function at a time to SSA form. Reusable
// across functions via reset, so a moduledriver translating every function
// of a module allocates one Translator (one per worker when translating in
// parallel) (spec.md §5's resource
// discipline, mirrored from the teacher's per-worker *frontend.Compiler
// reuse).
type Translator struct {
	cfg Config

	b       ssa.Builder
	runtime runtimeadapter.RuntimeAdapter

	m         *wasm.Module
	interner  *importInterner
	state     loweringState
	operators *wasm.OperatorReader

	funcIdx    uint32
	sig        *wasm.FunctionType
	localTypes []wasm.ValueType
	locals     []ssa.Variable
}

// New returns a Translator ready to translate functions of m against the
// given RuntimeAdapter.
func New(m *wasm.Module, runtime runtimeadapter.RuntimeAdapter, opts ...Option) *Translator {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	b := ssa.NewBuilder()
	return &Translator{
		cfg:      cfg,
		b:        b,
		runtime:  runtime,
		m:        m,
		interner: newImportInterner(m, b),
	}
}

// Builder exposes the underlying ssa.Builder, valid only in between
// TranslateFunction calls (moduledriver reads it immediately after each
// call, before the next one resets it).
func (t *Translator) Builder() ssa.Builder { return t.b }

// TranslateFunction lowers the locally-defined function at funcIdx (a
// function index within the module's combined import+local index space)
// to SSA form. The result is available via Builder() until the next call.
func (t *Translator) TranslateFunction(funcIdx uint32) error {
	t.b.Reset()
	t.state.reset()
	t.interner.reset(t.m, t.b)

	t.funcIdx = funcIdx
	local := funcIdx - t.m.ImportFunctionCount
	t.sig = t.m.Types[t.m.FunctionTypeIndices[local]]
	code := t.m.Code[local]
	t.localTypes = append(append([]wasm.ValueType{}, t.sig.Params...), code.LocalTypes...)
	t.operators = wasm.NewOperatorReader(t.m, code.Body)

	if err := t.declareLocals(); err != nil {
		return err
	}

	entry := t.b.AllocateBasicBlock()
	for _, pt := range t.sig.Params {
		entry.AddParam(t.b, toSSAType(pt))
	}
	t.b.SetCurrentBlock(entry)
	for i := range t.sig.Params {
		t.b.DefineVariableInCurrentBB(t.locals[i], entry.Param(i))
	}
	// Wasm requires every declared local (not a parameter) start at its
	// type's zero value (spec.md §3).
	for i := len(t.sig.Params); i < len(t.localTypes); i++ {
		zero := t.zeroValue(toSSAType(t.localTypes[i]))
		t.b.DefineVariableInCurrentBB(t.locals[i], zero)
	}

	if err := t.lowerBody(entry); err != nil {
		return err
	}

	if t.cfg.verify {
		if err := ssa.Verify(t.b); err != nil {
			return newError(VerifierRejection, t.state.pc, "%s", err)
		}
	}
	return nil
}

// declareLocals registers one ssa.Variable per wasm local (params first,
// then the function's own declared locals), matching spec.md §3's local
// storage model: locals are resolved to Values via Builder.FindValue, not
// carried as explicit EBB params.
func (t *Translator) declareLocals() error {
	t.locals = make([]ssa.Variable, len(t.localTypes))
	for i, lt := range t.localTypes {
		switch lt {
		case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
			t.locals[i] = t.b.DeclareVariable(toSSAType(lt))
		default:
			return newError(UnsupportedLocalType, 0, "local %d has unsupported type 0x%02x", i, lt)
		}
	}
	return nil
}

func (t *Translator) zeroValue(typ ssa.Type) ssa.Value {
	instr := t.b.AllocateInstruction()
	switch typ {
	case ssa.TypeI32:
		instr.AsIconst32(0)
	case ssa.TypeI64:
		instr.AsIconst64(0)
	case ssa.TypeF32:
		instr.AsF32const(0)
	case ssa.TypeF64:
		instr.AsF64const(0)
	default:
		panic("zeroValue: unsupported type")
	}
	t.b.InsertInstruction(instr)
	return instr.Return()
}
