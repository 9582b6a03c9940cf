package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

// Aggregate computes one aggregate function over its child, optionally
// grouped by a field. The child is consumed fully at Open; results
// stream from the materialized aggregate afterwards.
type Aggregate struct {
	child    DbIterator
	aggField int
	gbField  int
	op       AggregateOp

	td         *tuple.TupleDescription
	resultIter DbIterator
}

// NewAggregate creates an aggregate of op over child's aggField,
// grouped by gbField (NoGrouping for a whole-input aggregate).
func NewAggregate(child DbIterator, aggField, gbField int, op AggregateOp) (*Aggregate, error) {
	if child == nil {
		return nil, errors.New("child iterator cannot be nil")
	}
	childTd := child.GetTupleDesc()
	if _, err := childTd.TypeAtIndex(aggField); err != nil {
		return nil, err
	}

	gbFieldType := types.IntType
	if gbField != NoGrouping {
		t, err := childTd.TypeAtIndex(gbField)
		if err != nil {
			return nil, err
		}
		gbFieldType = t
	}

	td, err := resultSchema(gbField, gbFieldType)
	if err != nil {
		return nil, err
	}
	return &Aggregate{
		child:    child,
		aggField: aggField,
		gbField:  gbField,
		op:       op,
		td:       td,
	}, nil
}

func (a *Aggregate) newAggregator() (Aggregator, error) {
	childTd := a.child.GetTupleDesc()
	aggFieldType, err := childTd.TypeAtIndex(a.aggField)
	if err != nil {
		return nil, err
	}
	gbFieldType := types.IntType
	if a.gbField != NoGrouping {
		gbFieldType, err = childTd.TypeAtIndex(a.gbField)
		if err != nil {
			return nil, err
		}
	}

	switch aggFieldType {
	case types.IntType:
		return NewIntAggregator(a.gbField, gbFieldType, a.aggField, a.op), nil
	case types.StringType:
		return NewStringAggregator(a.gbField, gbFieldType, a.aggField, a.op)
	default:
		return nil, errors.Errorf("no aggregator for field type %v", aggFieldType)
	}
}

// Open consumes the child and materializes the aggregate.
func (a *Aggregate) Open() error {
	agg, err := a.newAggregator()
	if err != nil {
		return err
	}

	if err := a.child.Open(); err != nil {
		return err
	}
	for {
		hasNext, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !hasNext {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		if err := agg.Merge(t); err != nil {
			return err
		}
	}

	a.resultIter, err = agg.Iterator()
	if err != nil {
		return err
	}
	return a.resultIter.Open()
}

func (a *Aggregate) HasNext() (bool, error) {
	if a.resultIter == nil {
		return false, errors.New("iterator not opened")
	}
	return a.resultIter.HasNext()
}

func (a *Aggregate) Next() (*tuple.Tuple, error) {
	if a.resultIter == nil {
		return nil, errors.New("iterator not opened")
	}
	return a.resultIter.Next()
}

func (a *Aggregate) Rewind() error {
	if a.resultIter == nil {
		return errors.New("iterator not opened")
	}
	return a.resultIter.Rewind()
}

func (a *Aggregate) Close() error {
	a.child.Close()
	if a.resultIter != nil {
		err := a.resultIter.Close()
		a.resultIter = nil
		return err
	}
	return nil
}

func (a *Aggregate) GetTupleDesc() *tuple.TupleDescription {
	return a.td
}
