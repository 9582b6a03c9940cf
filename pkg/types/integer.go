package types

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// IntField is a 64-bit signed integer field.
type IntField struct {
	Value int64
}

// NewIntField creates an integer field holding v.
func NewIntField(v int64) *IntField {
	return &IntField{Value: v}
}

// Serialize writes the value as 8 big-endian bytes.
func (f *IntField) Serialize(w io.Writer) error {
	if w == nil {
		return errors.New("writer cannot be nil")
	}
	return binary.Write(w, binary.BigEndian, f.Value)
}

// Compare evaluates this <op> other for another IntField.
func (f *IntField) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherInt, ok := other.(*IntField)
	if !ok {
		return false, errors.Errorf("cannot compare IntField with %T", other)
	}

	switch op {
	case primitives.Equals, primitives.Like:
		return f.Value == otherInt.Value, nil
	case primitives.NotEqual:
		return f.Value != otherInt.Value, nil
	case primitives.LessThan:
		return f.Value < otherInt.Value, nil
	case primitives.LessThanOrEqual:
		return f.Value <= otherInt.Value, nil
	case primitives.GreaterThan:
		return f.Value > otherInt.Value, nil
	case primitives.GreaterThanOrEqual:
		return f.Value >= otherInt.Value, nil
	default:
		return false, errors.Errorf("unsupported predicate: %v", op)
	}
}

func (f *IntField) Type() Type {
	return IntType
}

func (f *IntField) Hash() (primitives.HashCode, error) {
	h := fnv.New32a()
	if err := binary.Write(h, binary.BigEndian, f.Value); err != nil {
		return 0, errors.Wrap(err, "hash int field")
	}
	return primitives.HashCode(h.Sum32()), nil
}

func (f *IntField) Equals(other Field) bool {
	otherInt, ok := other.(*IntField)
	if !ok {
		return false
	}
	return f.Value == otherInt.Value
}

func (f *IntField) String() string {
	return strconv.FormatInt(f.Value, 10)
}
