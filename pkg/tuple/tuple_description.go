package tuple

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"minirel/pkg/types"
)

// TupleDescription is the schema of a tuple: an ordered list of field
// types and optional field names. All tuples of a heap file share one
// description, so every record occupies the same fixed width.
type TupleDescription struct {
	Types      []types.Type
	FieldNames []string
}

// NewTupleDesc creates a schema from parallel type and name slices.
// names may be nil for an anonymous schema; otherwise it must match
// fieldTypes in length.
func NewTupleDesc(fieldTypes []types.Type, names []string) (*TupleDescription, error) {
	if len(fieldTypes) == 0 {
		return nil, errors.New("schema must contain at least one field")
	}
	if names != nil && len(names) != len(fieldTypes) {
		return nil, errors.Errorf("have %d types but %d names", len(fieldTypes), len(names))
	}

	td := &TupleDescription{
		Types:      make([]types.Type, len(fieldTypes)),
		FieldNames: make([]string, len(fieldTypes)),
	}
	copy(td.Types, fieldTypes)
	if names != nil {
		copy(td.FieldNames, names)
	}
	return td, nil
}

// NumFields returns the number of fields in the schema.
func (td *TupleDescription) NumFields() int {
	return len(td.Types)
}

// TypeAtIndex returns the type of field i.
func (td *TupleDescription) TypeAtIndex(i int) (types.Type, error) {
	if i < 0 || i >= len(td.Types) {
		return 0, errors.Errorf("field index %d out of range [0, %d)", i, len(td.Types))
	}
	return td.Types[i], nil
}

// GetFieldName returns the name of field i, possibly empty.
func (td *TupleDescription) GetFieldName(i int) (string, error) {
	if i < 0 || i >= len(td.FieldNames) {
		return "", errors.Errorf("field index %d out of range [0, %d)", i, len(td.FieldNames))
	}
	return td.FieldNames[i], nil
}

// NameToIndex finds the index of the field with the given name.
func (td *TupleDescription) NameToIndex(name string) (int, error) {
	if name == "" {
		return 0, errors.New("field name cannot be empty")
	}
	for i, n := range td.FieldNames {
		if n == name {
			return i, nil
		}
	}
	return 0, errors.Errorf("no field named %q", name)
}

// Size returns the fixed byte width of a record with this schema.
func (td *TupleDescription) Size() uint32 {
	var total uint32
	for _, t := range td.Types {
		total += t.Size()
	}
	return total
}

// Equals reports whether two schemas have identical field types in the
// same order. Field names do not participate in schema equality.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if other == nil || len(td.Types) != len(other.Types) {
		return false
	}
	for i, t := range td.Types {
		if t != other.Types[i] {
			return false
		}
	}
	return true
}

// Combine concatenates two schemas into one, left fields first. Used to
// build the output schema of a join.
func Combine(left, right *TupleDescription) (*TupleDescription, error) {
	if left == nil || right == nil {
		return nil, errors.New("cannot combine nil schemas")
	}

	combinedTypes := make([]types.Type, 0, len(left.Types)+len(right.Types))
	combinedTypes = append(combinedTypes, left.Types...)
	combinedTypes = append(combinedTypes, right.Types...)

	combinedNames := make([]string, 0, len(left.FieldNames)+len(right.FieldNames))
	combinedNames = append(combinedNames, left.FieldNames...)
	combinedNames = append(combinedNames, right.FieldNames...)

	return NewTupleDesc(combinedTypes, combinedNames)
}

func (td *TupleDescription) String() string {
	parts := make([]string, len(td.Types))
	for i, t := range td.Types {
		name := td.FieldNames[i]
		if name == "" {
			name = fmt.Sprintf("f%d", i)
		}
		parts[i] = fmt.Sprintf("%s(%s)", name, t)
	}
	return strings.Join(parts, ", ")
}
