package types

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// Float64Field is a 64-bit IEEE-754 floating point field.
type Float64Field struct {
	Value float64
}

// NewFloat64Field creates a float field holding v.
func NewFloat64Field(v float64) *Float64Field {
	return &Float64Field{Value: v}
}

// Serialize writes the value's IEEE-754 bits as 8 big-endian bytes.
func (f *Float64Field) Serialize(w io.Writer) error {
	if w == nil {
		return errors.New("writer cannot be nil")
	}
	return binary.Write(w, binary.BigEndian, math.Float64bits(f.Value))
}

// Compare evaluates this <op> other for another Float64Field.
func (f *Float64Field) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherFloat, ok := other.(*Float64Field)
	if !ok {
		return false, errors.Errorf("cannot compare Float64Field with %T", other)
	}

	switch op {
	case primitives.Equals, primitives.Like:
		return f.Value == otherFloat.Value, nil
	case primitives.NotEqual:
		return f.Value != otherFloat.Value, nil
	case primitives.LessThan:
		return f.Value < otherFloat.Value, nil
	case primitives.LessThanOrEqual:
		return f.Value <= otherFloat.Value, nil
	case primitives.GreaterThan:
		return f.Value > otherFloat.Value, nil
	case primitives.GreaterThanOrEqual:
		return f.Value >= otherFloat.Value, nil
	default:
		return false, errors.Errorf("unsupported predicate: %v", op)
	}
}

func (f *Float64Field) Type() Type {
	return FloatType
}

func (f *Float64Field) Hash() (primitives.HashCode, error) {
	h := fnv.New32a()
	if err := binary.Write(h, binary.BigEndian, math.Float64bits(f.Value)); err != nil {
		return 0, errors.Wrap(err, "hash float field")
	}
	return primitives.HashCode(h.Sum32()), nil
}

func (f *Float64Field) Equals(other Field) bool {
	otherFloat, ok := other.(*Float64Field)
	if !ok {
		return false
	}
	return f.Value == otherFloat.Value
}

func (f *Float64Field) String() string {
	return strconv.FormatFloat(f.Value, 'g', -1, 64)
}
