package wasm

import (
	"bytes"
	"fmt"
	"io"
)

// Decode reads a binary wasm module (the %00 "asm" magic, version 1) and
// reduces it to the Module this repository translates plus the
// instantiation data (globals/memory/table) that RuntimeAdapter owns but
// only the binary's own sections can supply. Module-level section parsing
// is explicitly an external collaborator to the per-function translator
// (spec.md §1); this is that collaborator, grounded on
// wasm2cretonne's module_parser.rs/sections_translator.rs section-dispatch
// loop, reduced to the sections this repository's data model understands.
//
// Only function imports are recorded (table/memory/global imports are
// parsed and skipped), matching wasm.Import's own single-purpose shape.
func Decode(r io.Reader) (*Module, *Instantiation, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("wasm: reading module: %w", err)
	}
	br := bytes.NewReader(buf)

	var magic [4]byte
	var version [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil || magic != [4]byte{0x00, 0x61, 0x73, 0x6d} {
		return nil, nil, fmt.Errorf("wasm: missing \\0asm header")
	}
	if _, err := io.ReadFull(br, version[:]); err != nil || version != [4]byte{0x01, 0x00, 0x00, 0x00} {
		return nil, nil, fmt.Errorf("wasm: unsupported binary version")
	}

	d := &decoder{m: &Module{}, inst: &Instantiation{}}
	for br.Len() > 0 {
		id, err := br.ReadByte()
		if err != nil {
			return nil, nil, fmt.Errorf("wasm: reading section id: %w", err)
		}
		size, err := decodeUint32(br)
		if err != nil {
			return nil, nil, fmt.Errorf("wasm: reading section %d size: %w", id, err)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, nil, fmt.Errorf("wasm: reading section %d body: %w", id, err)
		}
		sr := bytes.NewReader(body)
		if err := d.section(id, sr); err != nil {
			return nil, nil, fmt.Errorf("wasm: section %d: %w", id, err)
		}
	}
	return d.m, d.inst, nil
}

// Instantiation holds everything a RuntimeAdapter needs to set up a
// module's globals, memory and table before any function runs: data the
// reduced Module type deliberately has no room for (spec.md §6 makes
// RuntimeAdapter the sole authority on their existence and shape).
type Instantiation struct {
	GlobalTypes []ValueType
	GlobalInits []uint64 // raw bit patterns, index-aligned with GlobalTypes

	MemoryInitialPages uint32
	MemoryMaxPages     uint32
	HasMemoryMax       bool

	TableSize uint32
	// TableElements maps a table slot to the function index placed there by
	// an active element segment with a constant i32 offset (the only shape
	// this decoder recognizes; fancier element segment kinds are rejected).
	TableElements map[uint32]uint32

	HasStart  bool
	StartFunc uint32
}

type decoder struct {
	m    *Module
	inst *Instantiation
}

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionTable    = 4
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionStart    = 8
	sectionElement  = 9
	sectionCode     = 10
)

func (d *decoder) section(id byte, r *bytes.Reader) error {
	switch id {
	case sectionType:
		return d.typeSection(r)
	case sectionImport:
		return d.importSection(r)
	case sectionFunction:
		return d.functionSection(r)
	case sectionTable:
		return d.tableSection(r)
	case sectionMemory:
		return d.memorySection(r)
	case sectionGlobal:
		return d.globalSection(r)
	case sectionExport:
		return d.exportSection(r)
	case sectionStart:
		return d.startSection(r)
	case sectionElement:
		return d.elementSection(r)
	case sectionCode:
		return d.codeSection(r)
	default:
		return nil // custom and data sections carry nothing translation needs
	}
}

func (d *decoder) typeSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	d.m.Types = make([]*FunctionType, n)
	for i := range d.m.Types {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return fmt.Errorf("type %d: expected func form 0x60, got 0x%02x", i, form)
		}
		params, err := decodeValueTypes(r)
		if err != nil {
			return err
		}
		results, err := decodeValueTypes(r)
		if err != nil {
			return err
		}
		d.m.Types[i] = &FunctionType{Params: params, Results: results}
	}
	return nil
}

func decodeValueTypes(r *bytes.Reader) ([]ValueType, error) {
	n, err := decodeUint32(r)
	if err != nil {
		return nil, err
	}
	ts := make([]ValueType, n)
	for i := range ts {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		ts[i] = ValueType(b)
	}
	return ts, nil
}

// importKind mirrors the binary format's import-description tag byte; only
// importKindFunc is representable in this repository's reduced Import type.
const (
	importKindFunc   = 0x00
	importKindTable  = 0x01
	importKindMemory = 0x02
	importKindGlobal = 0x03
)

func (d *decoder) importSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		mod, err := decodeName(r)
		if err != nil {
			return err
		}
		name, err := decodeName(r)
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case importKindFunc:
			typeIdx, err := decodeUint32(r)
			if err != nil {
				return err
			}
			d.m.Imports = append(d.m.Imports, Import{Module: mod, Name: name, TypeIndex: typeIdx})
			d.m.ImportFunctionCount++
		case importKindTable:
			if _, _, err := decodeTableType(r); err != nil {
				return err
			}
		case importKindMemory:
			if _, _, _, err := decodeLimits(r); err != nil {
				return err
			}
		case importKindGlobal:
			if _, _, err := decodeGlobalType(r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("import %d: unknown kind 0x%02x", i, kind)
		}
	}
	return nil
}

func decodeName(r *bytes.Reader) (string, error) {
	n, err := decodeUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *decoder) functionSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	d.m.FunctionTypeIndices = make([]uint32, n)
	for i := range d.m.FunctionTypeIndices {
		idx, err := decodeUint32(r)
		if err != nil {
			return err
		}
		d.m.FunctionTypeIndices[i] = idx
	}
	return nil
}

func decodeTableType(r *bytes.Reader) (elemType byte, limits [2]uint32, err error) {
	elemType, err = r.ReadByte()
	if err != nil {
		return 0, limits, err
	}
	min, max, has, err := decodeLimits(r)
	if err != nil {
		return 0, limits, err
	}
	limits[0] = min
	if has {
		limits[1] = max
	}
	return elemType, limits, nil
}

func decodeLimits(r *bytes.Reader) (min, max uint32, hasMax bool, err error) {
	flags, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, err
	}
	min, err = decodeUint32(r)
	if err != nil {
		return 0, 0, false, err
	}
	if flags&0x01 != 0 {
		max, err = decodeUint32(r)
		if err != nil {
			return 0, 0, false, err
		}
		hasMax = true
	}
	return min, max, hasMax, nil
}

func decodeGlobalType(r *bytes.Reader) (ValueType, bool, error) {
	vt, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}
	return ValueType(vt), mut != 0, nil
}

func (d *decoder) tableSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if n != 1 {
		return fmt.Errorf("multiple tables not supported")
	}
	_, limits, err := decodeTableType(r)
	if err != nil {
		return err
	}
	d.inst.TableSize = limits[0]
	return nil
}

func (d *decoder) memorySection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if n != 1 {
		return fmt.Errorf("multiple memories not supported")
	}
	min, max, hasMax, err := decodeLimits(r)
	if err != nil {
		return err
	}
	d.inst.MemoryInitialPages = min
	d.inst.MemoryMaxPages = max
	d.inst.HasMemoryMax = hasMax
	return nil
}

func (d *decoder) globalSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	d.inst.GlobalTypes = make([]ValueType, n)
	d.inst.GlobalInits = make([]uint64, n)
	for i := uint32(0); i < n; i++ {
		vt, _, err := decodeGlobalType(r)
		if err != nil {
			return err
		}
		bits, err := decodeConstExprBits(r)
		if err != nil {
			return err
		}
		d.inst.GlobalTypes[i] = vt
		d.inst.GlobalInits[i] = bits
	}
	return nil
}

// decodeConstExprBits reads a single-instruction constant initializer
// expression (i32.const/i64.const/f32.const/f64.const) followed by `end`,
// the only shape this decoder's globals and element offsets use. Global
// initializers referencing an imported global (global.get) are not
// supported.
func decodeConstExprBits(r *bytes.Reader) (uint64, error) {
	op, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	var bits uint64
	switch Opcode(op) {
	case OpI32Const:
		v, err := decodeInt32(r)
		if err != nil {
			return 0, err
		}
		bits = uint64(uint32(v))
	case OpI64Const:
		v, err := decodeInt64(r, 64)
		if err != nil {
			return 0, err
		}
		bits = uint64(v)
	case OpF32Const:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		bits = uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24
	case OpF64Const:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		for i, b := range buf {
			bits |= uint64(b) << (8 * i)
		}
	default:
		return 0, fmt.Errorf("unsupported constant expression opcode 0x%02x", op)
	}
	end, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if Opcode(end) != OpEnd {
		return 0, fmt.Errorf("constant expression missing end opcode")
	}
	return bits, nil
}

func (d *decoder) exportSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		name, err := decodeName(r)
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := decodeUint32(r)
		if err != nil {
			return err
		}
		// Only function exports are representable in Export (spec.md §6's
		// reduced data model); others are recorded nowhere since nothing
		// downstream of Decode consumes a non-function export name.
		if kind == importKindFunc {
			d.m.Exports = append(d.m.Exports, Export{Name: name, Index: idx})
		}
	}
	return nil
}

func (d *decoder) startSection(r *bytes.Reader) error {
	idx, err := decodeUint32(r)
	if err != nil {
		return err
	}
	d.inst.HasStart = true
	d.inst.StartFunc = idx
	return nil
}

func (d *decoder) elementSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	if d.inst.TableElements == nil && n > 0 {
		d.inst.TableElements = make(map[uint32]uint32)
	}
	for i := uint32(0); i < n; i++ {
		tableIdx, err := decodeUint32(r)
		if err != nil {
			return err
		}
		if tableIdx != 0 {
			return fmt.Errorf("element %d: only table 0 is supported", i)
		}
		offsetBits, err := decodeConstExprBits(r)
		if err != nil {
			return err
		}
		count, err := decodeUint32(r)
		if err != nil {
			return err
		}
		for j := uint32(0); j < count; j++ {
			funcIdx, err := decodeUint32(r)
			if err != nil {
				return err
			}
			d.inst.TableElements[uint32(offsetBits)+j] = funcIdx
		}
	}
	return nil
}

func (d *decoder) codeSection(r *bytes.Reader) error {
	n, err := decodeUint32(r)
	if err != nil {
		return err
	}
	d.m.Code = make([]Code, n)
	for i := range d.m.Code {
		size, err := decodeUint32(r)
		if err != nil {
			return err
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return err
		}
		br := bytes.NewReader(body)
		locals, err := decodeLocals(br)
		if err != nil {
			return err
		}
		rest := make([]byte, br.Len())
		if _, err := io.ReadFull(br, rest); err != nil {
			return err
		}
		d.m.Code[i] = Code{LocalTypes: locals, Body: rest}
	}
	return nil
}

func decodeLocals(r *bytes.Reader) ([]ValueType, error) {
	groups, err := decodeUint32(r)
	if err != nil {
		return nil, err
	}
	var locals []ValueType
	for i := uint32(0); i < groups; i++ {
		count, err := decodeUint32(r)
		if err != nil {
			return nil, err
		}
		vt, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < count; j++ {
			locals = append(locals, ValueType(vt))
		}
	}
	return locals, nil
}
