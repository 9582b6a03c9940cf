package execution

import (
	"fmt"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

// Predicate compares one tuple field against a constant operand.
type Predicate struct {
	fieldIndex int
	op         primitives.Predicate
	operand    types.Field
}

// NewPredicate creates a predicate testing field fieldIndex <op>
// operand.
func NewPredicate(fieldIndex int, op primitives.Predicate, operand types.Field) *Predicate {
	return &Predicate{fieldIndex: fieldIndex, op: op, operand: operand}
}

// Filter reports whether t satisfies the predicate.
func (p *Predicate) Filter(t *tuple.Tuple) (bool, error) {
	if t == nil {
		return false, errors.New("tuple cannot be nil")
	}
	field, err := t.GetField(p.fieldIndex)
	if err != nil {
		return false, err
	}
	return field.Compare(p.op, p.operand)
}

func (p *Predicate) String() string {
	return fmt.Sprintf("field[%d] %s %s", p.fieldIndex, p.op, p.operand)
}

// JoinPredicate compares a field of a left tuple against a field of a
// right tuple.
type JoinPredicate struct {
	leftField  int
	rightField int
	op         primitives.Predicate
}

// NewJoinPredicate creates a join condition left.leftField <op>
// right.rightField.
func NewJoinPredicate(leftField int, op primitives.Predicate, rightField int) *JoinPredicate {
	return &JoinPredicate{leftField: leftField, rightField: rightField, op: op}
}

// Filter reports whether the pair (left, right) satisfies the join
// condition.
func (jp *JoinPredicate) Filter(left, right *tuple.Tuple) (bool, error) {
	if left == nil || right == nil {
		return false, errors.New("join tuples cannot be nil")
	}
	lf, err := left.GetField(jp.leftField)
	if err != nil {
		return false, err
	}
	rf, err := right.GetField(jp.rightField)
	if err != nil {
		return false, err
	}
	return lf.Compare(jp.op, rf)
}
