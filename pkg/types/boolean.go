package types

import (
	"hash/fnv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// BoolField is a boolean field, encoded as a single byte (0 or 1).
type BoolField struct {
	Value bool
}

// NewBoolField creates a boolean field holding v.
func NewBoolField(v bool) *BoolField {
	return &BoolField{Value: v}
}

// Serialize writes a single byte: 1 for true, 0 for false.
func (f *BoolField) Serialize(w io.Writer) error {
	if w == nil {
		return errors.New("writer cannot be nil")
	}
	b := byte(0)
	if f.Value {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

// Compare evaluates this <op> other for another BoolField. Ordering treats
// false < true.
func (f *BoolField) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherBool, ok := other.(*BoolField)
	if !ok {
		return false, errors.Errorf("cannot compare BoolField with %T", other)
	}

	a, b := boolToInt(f.Value), boolToInt(otherBool.Value)
	switch op {
	case primitives.Equals, primitives.Like:
		return a == b, nil
	case primitives.NotEqual:
		return a != b, nil
	case primitives.LessThan:
		return a < b, nil
	case primitives.LessThanOrEqual:
		return a <= b, nil
	case primitives.GreaterThan:
		return a > b, nil
	case primitives.GreaterThanOrEqual:
		return a >= b, nil
	default:
		return false, errors.Errorf("unsupported predicate: %v", op)
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func (f *BoolField) Type() Type {
	return BoolType
}

func (f *BoolField) Hash() (primitives.HashCode, error) {
	h := fnv.New32a()
	if _, err := h.Write([]byte{byte(boolToInt(f.Value))}); err != nil {
		return 0, errors.Wrap(err, "hash bool field")
	}
	return primitives.HashCode(h.Sum32()), nil
}

func (f *BoolField) Equals(other Field) bool {
	otherBool, ok := other.(*BoolField)
	if !ok {
		return false
	}
	return f.Value == otherBool.Value
}

func (f *BoolField) String() string {
	return strconv.FormatBool(f.Value)
}
