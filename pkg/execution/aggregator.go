package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

// AggregateOp is one of the closed set of aggregate functions.
type AggregateOp int

const (
	CountAgg AggregateOp = iota
	SumAgg
	AvgAgg
	MinAgg
	MaxAgg
)

func (op AggregateOp) String() string {
	switch op {
	case CountAgg:
		return "COUNT"
	case SumAgg:
		return "SUM"
	case AvgAgg:
		return "AVG"
	case MinAgg:
		return "MIN"
	case MaxAgg:
		return "MAX"
	default:
		return "UNKNOWN"
	}
}

// NoGrouping marks an aggregation over the whole input.
const NoGrouping = -1

// Aggregator accumulates tuples and then produces the aggregate
// results as a tuple stream: (groupValue, aggregateValue) rows when
// grouping, a single (aggregateValue) row otherwise.
type Aggregator interface {
	Merge(t *tuple.Tuple) error
	Iterator() (DbIterator, error)
}

type intAggState struct {
	count int64
	sum   int64
	min   int64
	max   int64
}

func (s *intAggState) merge(v int64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.count++
	s.sum += v
}

func (s *intAggState) result(op AggregateOp) (int64, error) {
	switch op {
	case CountAgg:
		return s.count, nil
	case SumAgg:
		return s.sum, nil
	case AvgAgg:
		if s.count == 0 {
			return 0, nil
		}
		return s.sum / s.count, nil
	case MinAgg:
		return s.min, nil
	case MaxAgg:
		return s.max, nil
	default:
		return 0, errors.Errorf("unsupported aggregate: %v", op)
	}
}

// IntAggregator aggregates an integer field, optionally grouped by
// another field.
type IntAggregator struct {
	gbField     int
	gbFieldType types.Type
	aggField    int
	op          AggregateOp

	groups    map[string]*intAggState
	groupVals map[string]types.Field
	order     []string
}

// NewIntAggregator creates an integer aggregator. gbField is
// NoGrouping for a whole-input aggregate; otherwise gbFieldType names
// the grouping field's type.
func NewIntAggregator(gbField int, gbFieldType types.Type, aggField int, op AggregateOp) *IntAggregator {
	return &IntAggregator{
		gbField:     gbField,
		gbFieldType: gbFieldType,
		aggField:    aggField,
		op:          op,
		groups:      make(map[string]*intAggState),
		groupVals:   make(map[string]types.Field),
	}
}

func (a *IntAggregator) groupKey(t *tuple.Tuple) (string, types.Field, error) {
	if a.gbField == NoGrouping {
		return "", nil, nil
	}
	f, err := t.GetField(a.gbField)
	if err != nil {
		return "", nil, err
	}
	if f.Type() != a.gbFieldType {
		return "", nil, errors.Errorf("group field is %v, want %v", f.Type(), a.gbFieldType)
	}
	return f.String(), f, nil
}

// Merge folds one tuple into the running aggregate.
func (a *IntAggregator) Merge(t *tuple.Tuple) error {
	if t == nil {
		return errors.New("tuple cannot be nil")
	}
	key, groupVal, err := a.groupKey(t)
	if err != nil {
		return err
	}

	f, err := t.GetField(a.aggField)
	if err != nil {
		return err
	}
	intField, ok := f.(*types.IntField)
	if !ok {
		return errors.Errorf("aggregate field is %v, want %v", f.Type(), types.IntType)
	}

	state, ok := a.groups[key]
	if !ok {
		state = &intAggState{}
		a.groups[key] = state
		a.groupVals[key] = groupVal
		a.order = append(a.order, key)
	}
	state.merge(intField.Value)
	return nil
}

// Iterator returns the aggregate results in first-seen group order.
func (a *IntAggregator) Iterator() (DbIterator, error) {
	td, err := resultSchema(a.gbField, a.gbFieldType)
	if err != nil {
		return nil, err
	}

	results := make([]*tuple.Tuple, 0, len(a.order))
	for _, key := range a.order {
		value, err := a.groups[key].result(a.op)
		if err != nil {
			return nil, err
		}
		t, err := resultTuple(td, a.gbField, a.groupVals[key], types.NewIntField(value))
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return newTupleListIterator(td, results), nil
}

// StringAggregator counts string-field values, optionally grouped.
// COUNT is the only aggregate defined over strings.
type StringAggregator struct {
	gbField     int
	gbFieldType types.Type
	aggField    int

	counts    map[string]int64
	groupVals map[string]types.Field
	order     []string
}

// NewStringAggregator creates a string aggregator for op, which must
// be CountAgg.
func NewStringAggregator(gbField int, gbFieldType types.Type, aggField int, op AggregateOp) (*StringAggregator, error) {
	if op != CountAgg {
		return nil, errors.Errorf("%v is not defined over string fields", op)
	}
	return &StringAggregator{
		gbField:     gbField,
		gbFieldType: gbFieldType,
		aggField:    aggField,
		counts:      make(map[string]int64),
		groupVals:   make(map[string]types.Field),
	}, nil
}

// Merge folds one tuple into the running counts.
func (a *StringAggregator) Merge(t *tuple.Tuple) error {
	if t == nil {
		return errors.New("tuple cannot be nil")
	}
	f, err := t.GetField(a.aggField)
	if err != nil {
		return err
	}
	if f.Type() != types.StringType {
		return errors.Errorf("aggregate field is %v, want %v", f.Type(), types.StringType)
	}

	key := ""
	var groupVal types.Field
	if a.gbField != NoGrouping {
		gf, err := t.GetField(a.gbField)
		if err != nil {
			return err
		}
		key = gf.String()
		groupVal = gf
	}

	if _, ok := a.counts[key]; !ok {
		a.groupVals[key] = groupVal
		a.order = append(a.order, key)
	}
	a.counts[key]++
	return nil
}

// Iterator returns the counts in first-seen group order.
func (a *StringAggregator) Iterator() (DbIterator, error) {
	td, err := resultSchema(a.gbField, a.gbFieldType)
	if err != nil {
		return nil, err
	}

	results := make([]*tuple.Tuple, 0, len(a.order))
	for _, key := range a.order {
		t, err := resultTuple(td, a.gbField, a.groupVals[key], types.NewIntField(a.counts[key]))
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return newTupleListIterator(td, results), nil
}

func resultSchema(gbField int, gbFieldType types.Type) (*tuple.TupleDescription, error) {
	if gbField == NoGrouping {
		return tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"aggregateValue"})
	}
	return tuple.NewTupleDesc(
		[]types.Type{gbFieldType, types.IntType},
		[]string{"groupValue", "aggregateValue"},
	)
}

func resultTuple(td *tuple.TupleDescription, gbField int, groupVal, aggVal types.Field) (*tuple.Tuple, error) {
	t, err := tuple.NewTuple(td)
	if err != nil {
		return nil, err
	}
	if gbField == NoGrouping {
		if err := t.SetField(0, aggVal); err != nil {
			return nil, err
		}
		return t, nil
	}
	if err := t.SetField(0, groupVal); err != nil {
		return nil, err
	}
	if err := t.SetField(1, aggVal); err != nil {
		return nil, err
	}
	return t, nil
}

// tupleListIterator replays a materialized result set.
type tupleListIterator struct {
	base   *BaseIterator
	td     *tuple.TupleDescription
	tuples []*tuple.Tuple
	pos    int
}

func newTupleListIterator(td *tuple.TupleDescription, tuples []*tuple.Tuple) *tupleListIterator {
	it := &tupleListIterator{td: td, tuples: tuples}
	it.base = NewBaseIterator(it.readNext)
	return it
}

func (it *tupleListIterator) Open() error {
	it.pos = 0
	it.base.MarkOpened()
	return nil
}

func (it *tupleListIterator) readNext() (*tuple.Tuple, error) {
	if it.pos >= len(it.tuples) {
		return nil, nil
	}
	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}

func (it *tupleListIterator) HasNext() (bool, error) {
	return it.base.HasNext()
}

func (it *tupleListIterator) Next() (*tuple.Tuple, error) {
	return it.base.Next()
}

func (it *tupleListIterator) Rewind() error {
	it.pos = 0
	it.base.MarkOpened()
	return nil
}

func (it *tupleListIterator) Close() error {
	return it.base.Close()
}

func (it *tupleListIterator) GetTupleDesc() *tuple.TupleDescription {
	return it.td
}
