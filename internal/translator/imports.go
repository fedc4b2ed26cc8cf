package translator

import (
	"github.com/wasmssa/wasmssa/internal/ssa"
	"github.com/wasmssa/wasmssa/internal/wasm"
)

// importInterner memoizes, per translated function, the mapping from wasm
// function/signature indices to the IR handles Call/CallIndirect need
// (ssa.FuncRef, *ssa.Signature). Grounded on spec.md §4.4: interning is
// lazy (only functions/signatures actually called by this function are
// ever resolved) and scoped to one function at a time, not the whole
// module, since ssa.Builder itself is reset per function.
type importInterner struct {
	m *wasm.Module
	b ssa.Builder

	funcRefs   map[uint32]ssa.FuncRef
	signatures map[uint32]*ssa.Signature
}

func newImportInterner(m *wasm.Module, b ssa.Builder) *importInterner {
	return &importInterner{
		m:          m,
		b:          b,
		funcRefs:   make(map[uint32]ssa.FuncRef),
		signatures: make(map[uint32]*ssa.Signature),
	}
}

func (ii *importInterner) reset(m *wasm.Module, b ssa.Builder) {
	ii.m, ii.b = m, b
	for k := range ii.funcRefs {
		delete(ii.funcRefs, k)
	}
	for k := range ii.signatures {
		delete(ii.signatures, k)
	}
}

// funcRef interns funcIdx (a wasm function index, spanning both imports and
// locally-defined functions) into a stable ssa.FuncRef, creating one on
// first use.
func (ii *importInterner) funcRef(funcIdx uint32) ssa.FuncRef {
	if ref, ok := ii.funcRefs[funcIdx]; ok {
		return ref
	}
	ref := ssa.FuncRef(funcIdx)
	ii.funcRefs[funcIdx] = ref
	return ref
}

// signature interns a wasm type index into the *ssa.Signature Call/
// CallIndirect instructions reference, registering it with the builder on
// first use (spec.md §4.4).
func (ii *importInterner) signature(typeIdx uint32) *ssa.Signature {
	if sig, ok := ii.signatures[typeIdx]; ok {
		return sig
	}
	ft := ii.m.Types[typeIdx]
	sig := &ssa.Signature{
		ID:      ssa.SignatureID(typeIdx),
		Params:  valueTypesToSSA(ft.Params),
		Results: valueTypesToSSA(ft.Results),
	}
	ii.b.DeclareSignature(sig)
	ii.signatures[typeIdx] = sig
	return sig
}

// signatureOf is signature() keyed by a function index instead of a type
// index directly, resolving through the module's function/import sections.
func (ii *importInterner) signatureOf(funcIdx uint32) *ssa.Signature {
	return ii.signature(ii.m.FuncTypeIndex(funcIdx))
}

func valueTypesToSSA(ts []wasm.ValueType) []ssa.Type {
	ret := make([]ssa.Type, len(ts))
	for i, t := range ts {
		ret[i] = toSSAType(t)
	}
	return ret
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
		panic("unsupported local/value type")
	}
}
