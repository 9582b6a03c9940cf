package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/tuple"
)

// Filter passes through the child's tuples that satisfy a predicate.
type Filter struct {
	base      *BaseIterator
	predicate *Predicate
	child     DbIterator
}

// NewFilter creates a filter over child with the given predicate.
func NewFilter(predicate *Predicate, child DbIterator) (*Filter, error) {
	if predicate == nil {
		return nil, errors.New("predicate cannot be nil")
	}
	if child == nil {
		return nil, errors.New("child iterator cannot be nil")
	}
	f := &Filter{predicate: predicate, child: child}
	f.base = NewBaseIterator(f.readNext)
	return f, nil
}

func (f *Filter) Open() error {
	if err := f.child.Open(); err != nil {
		return err
	}
	f.base.MarkOpened()
	return nil
}

func (f *Filter) readNext() (*tuple.Tuple, error) {
	for {
		hasNext, err := f.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !hasNext {
			return nil, nil
		}
		t, err := f.child.Next()
		if err != nil {
			return nil, err
		}
		matches, err := f.predicate.Filter(t)
		if err != nil {
			return nil, err
		}
		if matches {
			return t, nil
		}
	}
}

func (f *Filter) HasNext() (bool, error) {
	return f.base.HasNext()
}

func (f *Filter) Next() (*tuple.Tuple, error) {
	return f.base.Next()
}

func (f *Filter) Rewind() error {
	if err := f.child.Rewind(); err != nil {
		return err
	}
	f.base.MarkOpened()
	return nil
}

func (f *Filter) Close() error {
	f.child.Close()
	return f.base.Close()
}

func (f *Filter) GetTupleDesc() *tuple.TupleDescription {
	return f.child.GetTupleDesc()
}
