package ssa

import (
	"fmt"
	"strings"
)

// Signature is a function prototype used by Call/CallIndirect instructions.
type Signature struct {
	ID              SignatureID
	Params, Results []Type

	// used tracks whether this signature is referenced by the currently
	// compiled function. Debugging/diagnostics only.
	used bool
}

// String implements fmt.Stringer.
func (s *Signature) String() string {
	str := strings.Builder{}
	str.WriteString(s.ID.String())
	str.WriteString(": ")
	for _, typ := range s.Params {
		str.WriteString(typ.String())
	}
	str.WriteByte('_')
	for _, typ := range s.Results {
		str.WriteString(typ.String())
	}
	return str.String()
}

// SignatureID uniquely identifies a Signature within a Builder.
type SignatureID int

// String implements fmt.Stringer.
func (s SignatureID) String() string {
	return fmt.Sprintf("sig%d", s)
}

// FuncRef identifies an externally-imported function within a Builder, as
// interned by the import interner (see internal/translator).
type FuncRef uint32

// String implements fmt.Stringer.
func (f FuncRef) String() string {
	return fmt.Sprintf("fn%d", f)
}
