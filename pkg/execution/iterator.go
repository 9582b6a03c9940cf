package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/tuple"
)

// DbIterator is the operator interface: every operator produces a
// tuple stream through open/next/rewind/close and exposes its output
// schema.
type DbIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*tuple.Tuple, error)
	Rewind() error
	Close() error
	GetTupleDesc() *tuple.TupleDescription
}

// ReadNextFunc produces the next tuple from an operator's source, or
// nil when the stream is exhausted.
type ReadNextFunc func() (*tuple.Tuple, error)

// BaseIterator supplies the lookahead caching and open-state handling
// shared by every operator. Operators embed it and plug in a readNext
// function.
type BaseIterator struct {
	nextTuple    *tuple.Tuple
	opened       bool
	readNextFunc ReadNextFunc
}

// NewBaseIterator creates a closed iterator over readNextFunc.
func NewBaseIterator(readNextFunc ReadNextFunc) *BaseIterator {
	return &BaseIterator{readNextFunc: readNextFunc}
}

// HasNext reports whether another tuple is available, caching it for
// the following Next call.
func (it *BaseIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, errors.New("iterator not opened")
	}
	if it.nextTuple == nil {
		var err error
		it.nextTuple, err = it.readNextFunc()
		if err != nil {
			return false, err
		}
	}
	return it.nextTuple != nil, nil
}

// Next returns the next tuple, consuming any cached lookahead.
func (it *BaseIterator) Next() (*tuple.Tuple, error) {
	if !it.opened {
		return nil, errors.New("iterator not opened")
	}
	if it.nextTuple == nil {
		var err error
		it.nextTuple, err = it.readNextFunc()
		if err != nil {
			return nil, err
		}
		if it.nextTuple == nil {
			return nil, errors.New("no more tuples")
		}
	}
	result := it.nextTuple
	it.nextTuple = nil
	return result, nil
}

// Close marks the iterator closed and drops cached state.
func (it *BaseIterator) Close() error {
	it.nextTuple = nil
	it.opened = false
	return nil
}

// MarkOpened marks the iterator open and clears any stale lookahead.
// Operators call it from Open and Rewind.
func (it *BaseIterator) MarkOpened() {
	it.opened = true
	it.nextTuple = nil
}
