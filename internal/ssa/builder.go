// Package ssa builds the SSA-form IR the translator targets: extended basic
// blocks with typed formal parameters ("block arguments"), in place of phi
// nodes. See https://en.wikipedia.org/wiki/Static_single-assignment_form#Block_arguments
// and MLIR's rationale for the same choice:
// https://mlir.llvm.org/docs/Rationale/Rationale/#block-arguments-vs-phi-nodes
//
// This package is free of wasm-specific knowledge; internal/translator
// builds functions with it, internal/runtimeadapter emits instructions into
// them, and internal/interp executes them.
package ssa

import (
	"fmt"
	"sort"
	"strings"
)

// Builder incrementally constructs one SSA function at a time. Reset allows
// reuse across functions, avoiding a fresh allocation per translated wasm
// function (spec.md §5's arena-allocation resource discipline).
type Builder interface {
	// Reset prepares the builder for the next function.
	Reset()

	// AllocateBasicBlock creates a new, empty, unsealed BasicBlock.
	AllocateBasicBlock() BasicBlock

	// ReturnBlock returns the virtual pseudo-block representing the
	// function's return continuation (spec.md §4.1 end-of-body).
	ReturnBlock() BasicBlock

	// Blocks returns every still-valid BasicBlock in creation order.
	Blocks() []BasicBlock

	// CurrentBlock returns the block instructions are currently being
	// inserted into.
	CurrentBlock() BasicBlock

	// SetCurrentBlock redirects instruction insertion to b.
	SetCurrentBlock(b BasicBlock)

	// DeclareVariable declares a new Variable (a wasm local) of type typ.
	DeclareVariable(typ Type) Variable

	// DefineVariable binds variable to value within block.
	DefineVariable(variable Variable, value Value, block BasicBlock)

	// DefineVariableInCurrentBB is DefineVariable(variable, value, CurrentBlock()).
	DefineVariableInCurrentBB(variable Variable, value Value)

	// AllocateInstruction returns a zeroed Instruction ready for an AsXxx
	// constructor call.
	AllocateInstruction() *Instruction

	// InsertInstruction appends raw to the current block and, if raw
	// produces one or more results, allocates their Values.
	InsertInstruction(raw *Instruction)

	// FindValue resolves the latest definition of variable reachable from
	// the current block, per the Braun-et-al incomplete-CFG algorithm.
	FindValue(variable Variable) Value

	// MustFindValue is FindValue but panics if undefined.
	MustFindValue(variable Variable) Value

	// Seal declares that every predecessor of blk is now known (no future
	// AddPred-equivalent calls will target it). Mandatory before FindValue
	// can fully resolve any Variable live across blk's entry.
	Seal(blk BasicBlock)

	// AnnotateValue attaches a debug name to value.
	AnnotateValue(value Value, annotation string)

	// DeclareSignature registers a Signature referenced by Call/CallIndirect.
	DeclareSignature(signature *Signature)

	// UsedSignatures returns the Signatures actually referenced by the
	// function built so far, sorted by ID.
	UsedSignatures() []*Signature

	// Format renders the whole function for debugging/tests.
	Format() string

	allocateValue(typ Type) Value
}

// NewBuilder returns a fresh Builder.
func NewBuilder() Builder {
	b := &builder{
		instructionsPool: newPool[Instruction](),
		basicBlocksPool:  newPool[basicBlock](),
		valueAnnotations: make(map[ValueID]string),
		signatures:       make(map[SignatureID]*Signature),
	}
	return b
}

type builder struct {
	basicBlocksPool  pool[basicBlock]
	instructionsPool pool[Instruction]
	signatures       map[SignatureID]*Signature

	basicBlocksView []BasicBlock
	currentBB       *basicBlock

	variables   []Type
	nextValueID ValueID
	nextVariable Variable

	valueAnnotations map[ValueID]string
}

// Reset implements Builder.Reset.
func (b *builder) Reset() {
	b.instructionsPool.reset()
	for _, sig := range b.signatures {
		sig.used = false
	}
	for i := 0; i < b.basicBlocksPool.allocated; i++ {
		b.basicBlocksPool.view(i).reset()
	}
	b.basicBlocksPool.reset()

	for i := Variable(0); i < b.nextVariable; i++ {
		b.variables[i] = TypeInvalid
	}
	b.nextVariable = 0

	for id := range b.valueAnnotations {
		delete(b.valueAnnotations, id)
	}
	b.nextValueID = 0
	b.currentBB = nil
}

// ReturnBlock implements Builder.ReturnBlock.
func (b *builder) ReturnBlock() BasicBlock { return returnBlockSingleton }

// AnnotateValue implements Builder.AnnotateValue.
func (b *builder) AnnotateValue(value Value, a string) {
	b.valueAnnotations[value.ID()] = a
}

// AllocateInstruction implements Builder.AllocateInstruction.
func (b *builder) AllocateInstruction() *Instruction {
	instr := b.instructionsPool.allocate()
	*instr = Instruction{rValue: valueInvalid}
	return instr
}

// DeclareSignature implements Builder.DeclareSignature.
func (b *builder) DeclareSignature(s *Signature) {
	b.signatures[s.ID] = s
	s.used = false
}

// UsedSignatures implements Builder.UsedSignatures.
func (b *builder) UsedSignatures() (ret []*Signature) {
	for _, sig := range b.signatures {
		if sig.used {
			ret = append(ret, sig)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return
}

// AllocateBasicBlock implements Builder.AllocateBasicBlock.
func (b *builder) AllocateBasicBlock() BasicBlock {
	id := basicBlockID(b.basicBlocksPool.allocated)
	blk := b.basicBlocksPool.allocate()
	blk.bid = id
	blk.lastDefinitions = make(map[Variable]Value)
	blk.unknownValues = make(map[Variable]Value)
	return blk
}

// InsertInstruction implements Builder.InsertInstruction.
func (b *builder) InsertInstruction(instr *Instruction) {
	b.currentBB.InsertInstruction(instr)

	t1, ts := instructionResultTypes(instr)
	if t1.invalid() {
		return
	}
	instr.rValue = b.allocateValue(t1)
	if len(ts) == 0 {
		return
	}
	instr.rValues = make([]Value, len(ts))
	for i, t := range ts {
		instr.rValues[i] = b.allocateValue(t)
	}
}

// instructionResultTypes determines the result type(s) of instr from its
// opcode and already-populated fields, mirroring spec.md §3's "output ... a
// signature, a set of EBBs" data model: every value-producing instruction
// knows its own type at construction time via the AsXxx call.
func instructionResultTypes(instr *Instruction) (Type, []Type) {
	switch instr.opcode {
	case OpcodeJump, OpcodeBrz, OpcodeBrnz, OpcodeBrTable, OpcodeReturn, OpcodeTrap, OpcodeStore,
		OpcodeIstore8, OpcodeIstore16, OpcodeIstore32:
		return TypeInvalid, nil
	case OpcodeCall, OpcodeCallIndirect:
		if instr.sig == nil || len(instr.sig.Results) == 0 {
			return TypeInvalid, nil
		}
		return instr.sig.Results[0], instr.sig.Results[1:]
	default:
		return instr.typ, nil
	}
}

// Blocks implements Builder.Blocks.
func (b *builder) Blocks() []BasicBlock {
	b.basicBlocksView = b.basicBlocksView[:0]
	for i := 0; i < b.basicBlocksPool.allocated; i++ {
		blk := b.basicBlocksPool.view(i)
		if blk.invalid {
			continue
		}
		b.basicBlocksView = append(b.basicBlocksView, blk)
	}
	return b.basicBlocksView
}

// DefineVariable implements Builder.DefineVariable.
func (b *builder) DefineVariable(variable Variable, value Value, block BasicBlock) {
	if b.variables[variable] == TypeInvalid {
		panic("BUG: defining undeclared " + variable.String())
	}
	block.(*basicBlock).lastDefinitions[variable] = value
}

// DefineVariableInCurrentBB implements Builder.DefineVariableInCurrentBB.
func (b *builder) DefineVariableInCurrentBB(variable Variable, value Value) {
	b.DefineVariable(variable, value, b.currentBB)
}

// SetCurrentBlock implements Builder.SetCurrentBlock.
func (b *builder) SetCurrentBlock(bb BasicBlock) { b.currentBB = bb.(*basicBlock) }

// CurrentBlock implements Builder.CurrentBlock.
func (b *builder) CurrentBlock() BasicBlock { return b.currentBB }

// DeclareVariable implements Builder.DeclareVariable.
func (b *builder) DeclareVariable(typ Type) Variable {
	v := b.nextVariable
	b.nextVariable++
	iv := int(v)
	if l := len(b.variables); l <= iv {
		b.variables = append(b.variables, make([]Type, 2*(l+1))...)
	}
	b.variables[v] = typ
	return v
}

func (b *builder) allocateValue(typ Type) (v Value) {
	v = Value(b.nextValueID)
	v.setType(typ)
	b.nextValueID++
	return
}

// FindValue implements Builder.FindValue.
func (b *builder) FindValue(variable Variable) Value {
	typ := b.definedVariableType(variable)
	return b.findValue(typ, variable, b.currentBB)
}

// MustFindValue implements Builder.MustFindValue.
func (b *builder) MustFindValue(variable Variable) Value {
	v := b.FindValue(variable)
	if !v.Valid() {
		panic("BUG: " + variable.String() + " has no reaching definition")
	}
	return v
}

// findValue recursively resolves the latest definition of variable reachable
// from blk, per the algorithm in section 2 of
// https://link.springer.com/content/pdf/10.1007/978-3-642-37051-9_6.pdf —
// the same incomplete-CFG construction the teacher's wazevo/ssa.Builder
// uses for wasm locals.
func (b *builder) findValue(typ Type, variable Variable, blk *basicBlock) Value {
	if val, ok := blk.lastDefinitions[variable]; ok {
		return val
	}
	if !blk.sealed {
		// Unknown predecessors may still show up; park a placeholder and
		// resolve it for real once Seal is called.
		value := b.allocateValue(typ)
		blk.lastDefinitions[variable] = value
		blk.unknownValues[variable] = value
		return value
	}
	if pred := blk.singlePred; pred != nil {
		return b.findValue(typ, variable, pred)
	}
	if len(blk.preds) == 0 {
		// Unreachable block (no predecessors, sealed): no reaching
		// definition: exists only in code that spec.md §4.1's unreachable
		// path never actually emits into.
		return valueInvalid
	}

	// Multiple predecessors: this Variable needs its own block parameter.
	paramValue := b.allocateValue(typ)
	blk.addParamOn(typ, paramValue)
	for i := range blk.preds {
		pred := &blk.preds[i]
		value := b.findValue(typ, variable, pred.blk)
		pred.branch.vs = append(pred.branch.vs, value)
	}
	return paramValue
}

// Seal implements Builder.Seal.
func (b *builder) Seal(raw BasicBlock) {
	blk := raw.(*basicBlock)
	if len(blk.preds) == 1 {
		blk.singlePred = blk.preds[0].blk
	}
	blk.sealed = true

	for variable, phiValue := range blk.unknownValues {
		typ := b.definedVariableType(variable)
		blk.addParamOn(typ, phiValue)
		for i := range blk.preds {
			pred := &blk.preds[i]
			predValue := b.findValue(typ, variable, pred.blk)
			pred.branch.vs = append(pred.branch.vs, predValue)
		}
	}
}

func (b *builder) definedVariableType(variable Variable) Type {
	typ := b.variables[variable]
	if typ == TypeInvalid {
		panic(fmt.Sprintf("%s is not declared", variable))
	}
	return typ
}

// Format implements Builder.Format.
func (b *builder) Format() string {
	str := strings.Builder{}
	if sigs := b.UsedSignatures(); len(sigs) > 0 {
		str.WriteString("signatures:\n")
		for _, sig := range sigs {
			str.WriteString("\t" + sig.String() + "\n")
		}
	}
	for _, blk := range b.Blocks() {
		bb := blk.(*basicBlock)
		str.WriteString("\n" + bb.FormatHeader(b) + "\n")
		for cur := bb.Root(); cur != nil; cur = cur.Next() {
			str.WriteString("\t" + cur.Format(b) + "\n")
		}
	}
	return str.String()
}
