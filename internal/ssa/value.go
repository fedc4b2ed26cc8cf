package ssa

import (
	"fmt"
	"math"
)

// Variable is a unique identifier for a source-level variable (a wasm local)
// that may be redefined multiple times as execution proceeds. It is resolved
// to a concrete Value via Builder.FindValue, using the sealed-block
// incomplete-CFG algorithm (see builder.go).
type Variable uint32

// String implements fmt.Stringer.
func (v Variable) String() string {
	return fmt.Sprintf("var%d", v)
}

// Value represents an SSA value together with its Type, packed into a single
// uint64 (the upper 32 bits hold the Type, the lower 32 the identifier). This
// keeps Value a plain comparable scalar instead of a pointer or interface,
// matching the arena-of-indices resource discipline described in spec.md §5.
type Value uint64

// ValueID is the identifier portion of a Value, without type information.
type ValueID uint32

const (
	valueIDInvalid ValueID = math.MaxUint32
	valueInvalid   Value   = Value(valueIDInvalid)
)

// Valid returns true if this Value was actually allocated.
func (v Value) Valid() bool {
	return v.ID() != valueIDInvalid
}

// Type returns the Type of this Value.
func (v Value) Type() Type {
	return Type(v >> 32)
}

// ID returns the ValueID of this value.
func (v Value) ID() ValueID {
	return ValueID(v)
}

func (v *Value) setType(typ Type) {
	*v |= Value(typ) << 32
}

// format renders a debug string for this Value, preferring any annotation
// registered via Builder.AnnotateValue.
func (v Value) format(b Builder) string {
	if bb, ok := b.(*builder); ok {
		if annotation, ok := bb.valueAnnotations[v.ID()]; ok {
			return annotation
		}
	}
	return fmt.Sprintf("v%d", v.ID())
}

func (v Value) formatWithType(b Builder) string {
	return fmt.Sprintf("%s:%s", v.format(b), v.Type())
}
