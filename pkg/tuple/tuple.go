package tuple

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"minirel/pkg/types"
)

// Tuple is one record: a schema plus its field values, and the RecordID
// of the slot it occupies once stored. A tuple not yet on a page has a
// nil RecordID.
type Tuple struct {
	TupleDesc *TupleDescription
	RecordID  *RecordID

	fields []types.Field
}

// NewTuple creates an empty tuple with the given schema. Fields start
// unset and must be populated with SetField before serialization.
func NewTuple(td *TupleDescription) (*Tuple, error) {
	if td == nil {
		return nil, errors.New("schema cannot be nil")
	}
	return &Tuple{
		TupleDesc: td,
		fields:    make([]types.Field, td.NumFields()),
	}, nil
}

// SetField assigns value to field i. The value's type must match the
// schema at that position.
func (t *Tuple) SetField(i int, value types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return errors.Errorf("field index %d out of range [0, %d)", i, len(t.fields))
	}
	if value == nil {
		return errors.New("field value cannot be nil")
	}
	expected, err := t.TupleDesc.TypeAtIndex(i)
	if err != nil {
		return err
	}
	if value.Type() != expected {
		return errors.Errorf("field %d expects %v, got %v", i, expected, value.Type())
	}
	t.fields[i] = value
	return nil
}

// GetField returns the value of field i.
func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, errors.Errorf("field index %d out of range [0, %d)", i, len(t.fields))
	}
	if t.fields[i] == nil {
		return nil, errors.Errorf("field %d is not set", i)
	}
	return t.fields[i], nil
}

// Serialize writes all field values in schema order. Every field must be
// set; the output is exactly TupleDesc.Size() bytes.
func (t *Tuple) Serialize(w io.Writer) error {
	if w == nil {
		return errors.New("writer cannot be nil")
	}
	for i, f := range t.fields {
		if f == nil {
			return errors.Errorf("cannot serialize tuple with unset field %d", i)
		}
		if err := f.Serialize(w); err != nil {
			return errors.Wrapf(err, "serialize field %d", i)
		}
	}
	return nil
}

// Parse reads one tuple with schema td from r, consuming exactly
// td.Size() bytes.
func Parse(r io.Reader, td *TupleDescription) (*Tuple, error) {
	t, err := NewTuple(td)
	if err != nil {
		return nil, err
	}
	for i := 0; i < td.NumFields(); i++ {
		fieldType, err := td.TypeAtIndex(i)
		if err != nil {
			return nil, err
		}
		f, err := types.ParseField(r, fieldType)
		if err != nil {
			return nil, errors.Wrapf(err, "parse field %d", i)
		}
		t.fields[i] = f
	}
	return t, nil
}

// Equals reports whether two tuples have equal schemas and equal field
// values. RecordIDs do not participate in tuple equality.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || !t.TupleDesc.Equals(other.TupleDesc) {
		return false
	}
	for i, f := range t.fields {
		of := other.fields[i]
		if f == nil || of == nil {
			if f != of {
				return false
			}
			continue
		}
		if !f.Equals(of) {
			return false
		}
	}
	return true
}

// CombineTuples concatenates two tuples into one whose schema is the
// combination of both, left fields first.
func CombineTuples(left, right *Tuple) (*Tuple, error) {
	if left == nil || right == nil {
		return nil, errors.New("cannot combine nil tuples")
	}
	combinedDesc, err := Combine(left.TupleDesc, right.TupleDesc)
	if err != nil {
		return nil, err
	}
	combined, err := NewTuple(combinedDesc)
	if err != nil {
		return nil, err
	}
	copy(combined.fields, left.fields)
	copy(combined.fields[len(left.fields):], right.fields)
	return combined, nil
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		if f == nil {
			parts[i] = "<unset>"
			continue
		}
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
