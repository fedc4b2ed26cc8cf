package ssa

import "fmt"

// VerifyError reports a structural defect found by Verify. Its presence
// indicates a bug in internal/translator, never in the input wasm module:
// translator bugs are the only way an ill-formed function can reach here
// (spec.md §7 draws the same line between TranslationError's malformed-input
// kinds and internal invariant violations).
type VerifyError struct {
	Block basicBlockID
	Msg   string
}

func (e *VerifyError) Error() string {
	if e.Block == basicBlockIDReturn {
		return e.Msg
	}
	return fmt.Sprintf("blk%d: %s", e.Block, e.Msg)
}

// Verify checks the structural invariants a completed function must satisfy
// (spec.md §8's testable properties 1-4, restated here over the built IR
// rather than over the translator's internal stacks):
//
//  1. Every block in Builder.Blocks() is sealed.
//  2. Every block ends in exactly one terminator instruction, which is its
//     last instruction.
//  3. Every branch's argument count matches its target's formal parameter
//     count.
//  4. No block is left empty without being terminated.
//
// It runs once per translated function: translator.TranslateFunction calls
// it unless verification is turned off (moduledriver's
// WithVerifyAfterTranslation), and tests call it directly.
func Verify(b Builder) error {
	for _, raw := range b.Blocks() {
		blk := raw.(*basicBlock)

		if !blk.sealed {
			return &VerifyError{Block: blk.bid, Msg: "block was never sealed"}
		}

		root, tail := blk.Root(), blk.Tail()
		if root == nil {
			return &VerifyError{Block: blk.bid, Msg: "block has no instructions"}
		}
		if !tail.isTerminator() {
			return &VerifyError{Block: blk.bid, Msg: "block does not end in a terminator"}
		}
		for cur := root; cur != tail; cur = cur.Next() {
			if cur.isTerminator() {
				return &VerifyError{Block: blk.bid, Msg: "terminator " + cur.opcode.String() + " is not the last instruction"}
			}
		}

		switch tail.opcode {
		case OpcodeJump:
			if err := verifyBranchArity(blk.bid, tail.blk, len(tail.vs)); err != nil {
				return err
			}
		case OpcodeBrTable:
			for _, t := range tail.targets {
				if err := verifyBranchArity(blk.bid, t, 0); err != nil {
					return err
				}
			}
		}
		// Brz/Brnz mid-block are not the tail, so their arity is checked by
		// the loop below; a block whose last instruction is a Brz/Brnz
		// already fails the terminator check above, since Brz/Brnz never set
		// bb.terminated (see basic_block.go).
		for cur := root; cur != nil; cur = cur.Next() {
			if cur.opcode == OpcodeBrz || cur.opcode == OpcodeBrnz {
				if err := verifyBranchArity(blk.bid, cur.blk, len(cur.vs)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func verifyBranchArity(from basicBlockID, to BasicBlock, nargs int) error {
	if to.ReturnBlock() {
		return nil
	}
	if got := to.Params(); got != nargs {
		return &VerifyError{
			Block: from,
			Msg:   fmt.Sprintf("branch to %s passes %d args, want %d", to.Name(), nargs, got),
		}
	}
	return nil
}

func (i *Instruction) isTerminator() bool {
	switch i.opcode {
	case OpcodeJump, OpcodeBrTable, OpcodeReturn, OpcodeTrap:
		return true
	default:
		return false
	}
}
