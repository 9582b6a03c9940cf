package types

import (
	"io"

	"minirel/pkg/primitives"
)

// Field is one typed value inside a tuple. Implementations are immutable;
// Serialize writes the fixed-width encoding for the field's type.
type Field interface {
	// Serialize writes the field's fixed-width binary encoding to w.
	Serialize(w io.Writer) error

	// Compare evaluates this <op> other and reports the result.
	// Comparing fields of different types is an error.
	Compare(op primitives.Predicate, other Field) (bool, error)

	// Type returns the field's type tag.
	Type() Type

	// Hash returns a stable hash of the field's value.
	Hash() (primitives.HashCode, error)

	// Equals reports value equality with another field.
	Equals(other Field) bool

	String() string
}
