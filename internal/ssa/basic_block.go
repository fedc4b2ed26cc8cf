package ssa

import (
	"fmt"
	"strconv"
	"strings"
)

// BasicBlock is an extended basic block (EBB): a sequence of instructions
// terminating in exactly one branch, jump, return or trap, with zero or more
// typed formal parameters bound by every incoming branch's argument list.
// This is the "block argument" variant of SSA described in spec.md's
// GLOSSARY, used in place of phi nodes.
type BasicBlock interface {
	// Name returns a unique debug name for this block, e.g. "blk3".
	Name() string

	// AddParam appends a fresh formal parameter of type t and returns the
	// Value bound to it inside this block.
	AddParam(b Builder, t Type) Value

	// Params returns the number of formal parameters.
	Params() int

	// Param returns the Value bound to the i-th formal parameter.
	Param(i int) Value

	// InsertInstruction appends raw to the tail of this block's instruction
	// list.
	InsertInstruction(raw *Instruction)

	// Root returns the first instruction in this block, or nil if empty.
	Root() *Instruction

	// Tail returns the last instruction in this block, or nil if empty.
	Tail() *Instruction

	// Terminated returns true once a terminator instruction (Jump, BrTable,
	// Return or Trap) has been inserted; Brz/Brnz do not terminate a block.
	Terminated() bool

	// Sealed returns true once Builder.Seal has been called on this block,
	// i.e. all of its predecessors are now known.
	Sealed() bool

	// Preds returns the number of known predecessor edges.
	Preds() int

	// ReturnBlock reports whether this is the synthetic function-return
	// pseudo-block (see Builder.ReturnBlock).
	ReturnBlock() bool

	// FormatHeader renders a debug string for this block's signature and
	// predecessor list, excluding its instructions.
	FormatHeader(b Builder) string

	id() basicBlockID
}

type (
	basicBlock struct {
		bid                     basicBlockID
		params                  []blockParam
		rootInstr, currentInstr *Instruction
		preds                   []basicBlockPredecessorInfo
		singlePred              *basicBlock
		sealed                  bool
		terminated              bool
		invalid                 bool

		// lastDefinitions/unknownValues back Builder.FindValue's
		// incomplete-CFG algorithm for wasm locals (Variable), entirely
		// separate from this block's formal params, which carry EBB merge
		// values per spec.md §3.
		lastDefinitions map[Variable]Value
		unknownValues   map[Variable]Value
	}

	basicBlockID uint32

	blockParam struct {
		value Value
		typ   Type
	}

	basicBlockPredecessorInfo struct {
		blk    *basicBlock
		branch *Instruction
	}
)

const basicBlockIDReturn = 0xffffffff

// returnBlockSingleton is the virtual BasicBlock representing "the function has
// returned"; it is a legal branch target for emitted `return` lowering but
// never appears in Builder.Blocks() and never accumulates real predecessors
// of its own (see spec.md §4.1, end-of-body handling).
var returnBlockSingleton = &basicBlock{bid: basicBlockIDReturn}

func (bb *basicBlock) id() basicBlockID { return bb.bid }

// Name implements BasicBlock.Name.
func (bb *basicBlock) Name() string {
	if bb.bid == basicBlockIDReturn {
		return "blk_ret"
	}
	return fmt.Sprintf("blk%d", bb.bid)
}

// ReturnBlock implements BasicBlock.ReturnBlock.
func (bb *basicBlock) ReturnBlock() bool { return bb.bid == basicBlockIDReturn }

// AddParam implements BasicBlock.AddParam.
func (bb *basicBlock) AddParam(b Builder, typ Type) Value {
	bldr := b.(*builder)
	v := bldr.allocateValue(typ)
	bb.params = append(bb.params, blockParam{typ: typ, value: v})
	return v
}

// addParamOn adds a parameter whose Value is already allocated (used when
// restoring a placeholder PHI value discovered via FindValue).
func (bb *basicBlock) addParamOn(typ Type, value Value) {
	bb.params = append(bb.params, blockParam{typ: typ, value: value})
}

// Params implements BasicBlock.Params.
func (bb *basicBlock) Params() int { return len(bb.params) }

// Param implements BasicBlock.Param.
func (bb *basicBlock) Param(i int) Value { return bb.params[i].value }

// Sealed implements BasicBlock.Sealed.
func (bb *basicBlock) Sealed() bool { return bb.sealed }

// Preds implements BasicBlock.Preds.
func (bb *basicBlock) Preds() int { return len(bb.preds) }

// Terminated implements BasicBlock.Terminated.
func (bb *basicBlock) Terminated() bool { return bb.terminated }

// InsertInstruction implements BasicBlock.InsertInstruction.
func (bb *basicBlock) InsertInstruction(next *Instruction) {
	if bb.terminated {
		panic("BUG: inserting an instruction into an already-terminated block " + bb.Name())
	}
	if current := bb.currentInstr; current != nil {
		current.next = next
		next.prev = current
	} else {
		bb.rootInstr = next
	}
	bb.currentInstr = next

	switch next.opcode {
	case OpcodeJump, OpcodeBrz, OpcodeBrnz:
		next.blk.(*basicBlock).addPred(bb, next)
	case OpcodeBrTable:
		for _, t := range next.targets {
			t.(*basicBlock).addPred(bb, next)
		}
	}
	switch next.opcode {
	case OpcodeJump, OpcodeBrTable, OpcodeReturn, OpcodeTrap:
		// Brz/Brnz are conditional and leave the block open: `if` lowering
		// follows its Brz with an unconditional Jump, while `br_if` keeps
		// appending its fall-through code to the same block (see
		// internal/translator/control.go), so only these opcodes actually
		// close out a block per spec.md §8 property 2.
		bb.terminated = true
	}
}

// Root implements BasicBlock.Root.
func (bb *basicBlock) Root() *Instruction { return bb.rootInstr }

// Tail implements BasicBlock.Tail.
func (bb *basicBlock) Tail() *Instruction { return bb.currentInstr }

func (bb *basicBlock) reset() {
	bb.params = bb.params[:0]
	bb.rootInstr, bb.currentInstr = nil, nil
	bb.preds = bb.preds[:0]
	bb.singlePred = nil
	bb.sealed, bb.terminated, bb.invalid = false, false, false
	bb.lastDefinitions = make(map[Variable]Value)
	bb.unknownValues = make(map[Variable]Value)
}

func (bb *basicBlock) addPred(blk BasicBlock, branch *Instruction) {
	if blk.ReturnBlock() {
		return
	}
	if bb.sealed {
		panic("BUG: adding a predecessor to an already-sealed block " + bb.Name())
	}
	pred := blk.(*basicBlock)
	bb.preds = append(bb.preds, basicBlockPredecessorInfo{blk: pred, branch: branch})
}

// FormatHeader implements BasicBlock.FormatHeader.
func (bb *basicBlock) FormatHeader(b Builder) string {
	ps := make([]string, len(bb.params))
	for i, p := range bb.params {
		ps[i] = p.value.formatWithType(b)
	}
	if len(bb.preds) > 0 {
		preds := make([]string, 0, len(bb.preds))
		for _, p := range bb.preds {
			if p.blk.invalid {
				continue
			}
			preds = append(preds, p.blk.Name())
		}
		return fmt.Sprintf("%s: (%s) <- (%s)", bb.Name(), strings.Join(ps, ", "), strings.Join(preds, ", "))
	}
	return fmt.Sprintf("%s: (%s)", bb.Name(), strings.Join(ps, ", "))
}

// String implements fmt.Stringer for debugging purposes only.
func (bb *basicBlock) String() string { return strconv.Itoa(int(bb.bid)) }
