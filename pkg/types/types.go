package types

// StringMaxSize is the fixed maximum byte length of a string field's
// contents. Every string field occupies the same encoded width so that
// slot width is constant across all tuples of a schema.
const StringMaxSize = 128

// Type identifies one of the closed set of field types.
type Type int

const (
	IntType Type = iota
	FloatType
	BoolType
	StringType
)

// Size returns the fixed encoded width in bytes of a field of this type.
func (t Type) Size() uint32 {
	switch t {
	case IntType:
		return 8
	case FloatType:
		return 8
	case BoolType:
		return 1
	case StringType:
		return 4 + StringMaxSize
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "INT_TYPE"
	case FloatType:
		return "FLOAT_TYPE"
	case BoolType:
		return "BOOL_TYPE"
	case StringType:
		return "STRING_TYPE"
	default:
		return "UNKNOWN_TYPE"
	}
}
