package types

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// ParseField reads one field of type t from r, consuming exactly
// t.Size() bytes. It is the inverse of Field.Serialize.
func ParseField(r io.Reader, t Type) (Field, error) {
	if r == nil {
		return nil, errors.New("reader cannot be nil")
	}

	switch t {
	case IntType:
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, errors.Wrap(err, "parse int field")
		}
		return NewIntField(v), nil

	case FloatType:
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return nil, errors.Wrap(err, "parse float field")
		}
		return NewFloat64Field(math.Float64frombits(bits)), nil

	case BoolType:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, errors.Wrap(err, "parse bool field")
		}
		return NewBoolField(b[0] != 0), nil

	case StringType:
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, errors.Wrap(err, "parse string length")
		}
		if length > StringMaxSize {
			return nil, errors.Errorf("string length %d exceeds maximum %d", length, StringMaxSize)
		}
		padded := make([]byte, StringMaxSize)
		if _, err := io.ReadFull(r, padded); err != nil {
			return nil, errors.Wrap(err, "parse string bytes")
		}
		return &StringField{Value: string(padded[:length])}, nil

	default:
		return nil, errors.Errorf("unknown field type: %v", t)
	}
}
