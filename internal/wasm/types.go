// Package wasm holds the minimal wasm module data model the translator
// consumes: value/function types and the per-function operator stream. It
// knows nothing about SSA; internal/translator and cmd/wasm2ssa are the
// packages that import both this and internal/ssa.
package wasm

import (
	"fmt"
	"strings"

	"github.com/wasmssa/wasmssa/api"
)

// ValueType re-exports api.ValueType so callers never need to import api
// directly just to name a local's type.
type ValueType = api.ValueType

const (
	ValueTypeI32 = api.ValueTypeI32
	ValueTypeI64 = api.ValueTypeI64
	ValueTypeF32 = api.ValueTypeF32
	ValueTypeF64 = api.ValueTypeF64
)

// FunctionType is a function signature: a sequence of parameter types and a
// sequence of result types (MVP wasm allows at most one result, but the
// type itself is not restricted).
type FunctionType struct {
	Params, Results []ValueType

	// id caches the string key computed once by key().
	id string
}

// String renders a FunctionType as "<params>_<results>", each using the
// text-format abbreviations ("i32", "i64", "f32", "f64"), matching the
// debug-string convention used throughout the teacher's module types.
func (t *FunctionType) String() string {
	ps := valueTypesString(t.Params)
	rs := valueTypesString(t.Results)
	if ps == "" {
		ps = "null"
	}
	if rs == "" {
		rs = "null"
	}
	return ps + "_" + rs
}

func valueTypesString(ts []ValueType) string {
	str := strings.Builder{}
	for _, t := range ts {
		str.WriteString(api.ValueTypeName(t))
	}
	return str.String()
}

// key returns (and memoizes) a stable identity string, equal for
// FunctionTypes of identical shape. Nothing in this package calls it yet
// to deduplicate the type section; Decode keeps every entry as read.
func (t *FunctionType) key() string {
	if t.id == "" {
		t.id = t.String()
	}
	return t.id
}

// Import describes one entry of the module's import section. Only function
// imports carry a TypeIndex; the translator's import interner
// (internal/translator/imports.go) is the sole consumer of this type.
type Import struct {
	Module, Name string
	// TypeIndex indexes Module.Types. Only meaningful when this import is a
	// function import (spec.md §4.4 scopes the interner to functions).
	TypeIndex uint32
}

// Export names a function made visible outside the module; Decode skips
// memory, global and table exports.
type Export struct {
	Name  string
	Index uint32
}

// Module is the decoded shape of one wasm binary, reduced to what
// translation needs: type/import/function declarations plus each defined
// function's raw operator bytes. Globals/memories/tables are intentionally
// absent here — RuntimeAdapter (internal/runtimeadapter) is the sole
// authority on their existence and shape, per spec.md §6.
type Module struct {
	Types   []*FunctionType
	Imports []Import

	// FunctionTypeIndices holds, for each locally-defined function (indexed
	// by local index), the index into Types of its signature.
	FunctionTypeIndices []uint32

	// Code holds each locally-defined function's body, index-aligned with
	// FunctionTypeIndices.
	Code []Code

	Exports []Export

	// ImportFunctionCount is the number of function imports at the head of
	// the combined function index space (imports first, then locals), per
	// the wasm spec's single shared index namespace.
	ImportFunctionCount uint32
}

// Code is one function body: its local-variable declarations (expanded from
// the wasm binary format's run-length encoding to one entry per local) and
// its operator stream.
type Code struct {
	LocalTypes []ValueType // already expanded, one entry per declared local
	Body       []byte
}

// FuncTypeIndexSpace resolves a function index (covering both imported and
// locally-defined functions) to its FunctionType.
func (m *Module) FuncTypeIndexSpace(funcIdx uint32) *FunctionType {
	return m.Types[m.FuncTypeIndex(funcIdx)]
}

// FuncTypeIndex resolves a function index to its index into Types.
func (m *Module) FuncTypeIndex(funcIdx uint32) uint32 {
	if funcIdx < m.ImportFunctionCount {
		return m.Imports[funcIdx].TypeIndex
	}
	return m.FunctionTypeIndices[funcIdx-m.ImportFunctionCount]
}

// IsImportedFunction reports whether funcIdx names an imported function
// rather than one defined in this module's code section.
func (m *Module) IsImportedFunction(funcIdx uint32) bool {
	return funcIdx < m.ImportFunctionCount
}

// BlockType is a structured control instruction's (block/loop/if) type
// signature. Per the wasm MVP binary format it is encoded as a single
// signed LEB128 byte: -0x40 for the empty type, -0x01/-0x02/-0x03/-0x04 for
// a single value type, or (if non-negative) an index into Types for a
// multi-value signature. See spec.md §4.2 and the GLOSSARY entry for
// "block type".
type BlockType struct {
	// sig is nil for the empty type or a single-result arity, in which case
	// Result holds the (possibly absent) single result type directly.
	sig    *FunctionType
	Result ValueType
	empty  bool
}

// Params returns the block's parameter types.
func (bt BlockType) Params() []ValueType {
	if bt.sig != nil {
		return bt.sig.Params
	}
	return nil
}

// Results returns the block's result types.
func (bt BlockType) Results() []ValueType {
	switch {
	case bt.sig != nil:
		return bt.sig.Results
	case bt.empty:
		return nil
	default:
		return []ValueType{bt.Result}
	}
}

const blockTypeEmpty = -0x40

// DecodeBlockType interprets a signed LEB128-decoded block type immediate
// against the module's type section.
func DecodeBlockType(m *Module, raw int64) (BlockType, error) {
	switch raw {
	case blockTypeEmpty:
		return BlockType{empty: true}, nil
	case -0x01:
		return BlockType{Result: ValueTypeI32}, nil
	case -0x02:
		return BlockType{Result: ValueTypeI64}, nil
	case -0x03:
		return BlockType{Result: ValueTypeF32}, nil
	case -0x04:
		return BlockType{Result: ValueTypeF64}, nil
	}
	if raw < 0 || int(raw) >= len(m.Types) {
		return BlockType{}, fmt.Errorf("invalid block type index: %d", raw)
	}
	return BlockType{sig: m.Types[raw]}, nil
}
