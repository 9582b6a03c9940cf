package types

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// StringField is a variable-length string field stored in a fixed-width
// slot: a 4-byte big-endian length followed by the bytes, zero-padded to
// StringMaxSize. Values longer than StringMaxSize are truncated at
// construction.
type StringField struct {
	Value string
}

// NewStringField creates a string field holding v, truncated to at most
// StringMaxSize bytes if necessary. The cut lands on a rune boundary so
// a truncated value is still valid UTF-8.
func NewStringField(v string) *StringField {
	if len(v) > StringMaxSize {
		cut := StringMaxSize
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = v[:cut]
	}
	return &StringField{Value: v}
}

// Serialize writes the 4-byte length prefix followed by the string bytes
// padded with zeros to StringMaxSize.
func (f *StringField) Serialize(w io.Writer) error {
	if w == nil {
		return errors.New("writer cannot be nil")
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(f.Value))); err != nil {
		return errors.Wrap(err, "write string length")
	}
	padded := make([]byte, StringMaxSize)
	copy(padded, f.Value)
	_, err := w.Write(padded)
	return err
}

// Compare evaluates this <op> other for another StringField using
// lexicographic byte order. Like tests substring containment.
func (f *StringField) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherStr, ok := other.(*StringField)
	if !ok {
		return false, errors.Errorf("cannot compare StringField with %T", other)
	}

	cmp := strings.Compare(f.Value, otherStr.Value)
	switch op {
	case primitives.Equals:
		return cmp == 0, nil
	case primitives.NotEqual:
		return cmp != 0, nil
	case primitives.LessThan:
		return cmp < 0, nil
	case primitives.LessThanOrEqual:
		return cmp <= 0, nil
	case primitives.GreaterThan:
		return cmp > 0, nil
	case primitives.GreaterThanOrEqual:
		return cmp >= 0, nil
	case primitives.Like:
		return strings.Contains(f.Value, otherStr.Value), nil
	default:
		return false, errors.Errorf("unsupported predicate: %v", op)
	}
}

func (f *StringField) Type() Type {
	return StringType
}

func (f *StringField) Hash() (primitives.HashCode, error) {
	h := fnv.New32a()
	if _, err := h.Write([]byte(f.Value)); err != nil {
		return 0, errors.Wrap(err, "hash string field")
	}
	return primitives.HashCode(h.Sum32()), nil
}

func (f *StringField) Equals(other Field) bool {
	otherStr, ok := other.(*StringField)
	if !ok {
		return false
	}
	return f.Value == otherStr.Value
}

func (f *StringField) String() string {
	return f.Value
}
