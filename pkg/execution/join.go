package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/tuple"
)

// Join is a nested-loop join: for each left tuple it rewinds and scans
// the right child, emitting the concatenation of every matching pair.
type Join struct {
	base      *BaseIterator
	predicate *JoinPredicate
	left      DbIterator
	right     DbIterator
	td        *tuple.TupleDescription

	currentLeft *tuple.Tuple
}

// NewJoin creates a join of left and right under predicate. The output
// schema is the two child schemas concatenated, left first.
func NewJoin(predicate *JoinPredicate, left, right DbIterator) (*Join, error) {
	if predicate == nil {
		return nil, errors.New("join predicate cannot be nil")
	}
	if left == nil || right == nil {
		return nil, errors.New("child iterators cannot be nil")
	}
	td, err := tuple.Combine(left.GetTupleDesc(), right.GetTupleDesc())
	if err != nil {
		return nil, err
	}
	j := &Join{predicate: predicate, left: left, right: right, td: td}
	j.base = NewBaseIterator(j.readNext)
	return j, nil
}

func (j *Join) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}
	if err := j.right.Open(); err != nil {
		j.left.Close()
		return err
	}
	j.currentLeft = nil
	j.base.MarkOpened()
	return nil
}

func (j *Join) readNext() (*tuple.Tuple, error) {
	for {
		if j.currentLeft == nil {
			hasLeft, err := j.left.HasNext()
			if err != nil {
				return nil, err
			}
			if !hasLeft {
				return nil, nil
			}
			j.currentLeft, err = j.left.Next()
			if err != nil {
				return nil, err
			}
			if err := j.right.Rewind(); err != nil {
				return nil, err
			}
		}

		hasRight, err := j.right.HasNext()
		if err != nil {
			return nil, err
		}
		if !hasRight {
			j.currentLeft = nil
			continue
		}
		rightTuple, err := j.right.Next()
		if err != nil {
			return nil, err
		}

		matches, err := j.predicate.Filter(j.currentLeft, rightTuple)
		if err != nil {
			return nil, err
		}
		if matches {
			return tuple.CombineTuples(j.currentLeft, rightTuple)
		}
	}
}

func (j *Join) HasNext() (bool, error) {
	return j.base.HasNext()
}

func (j *Join) Next() (*tuple.Tuple, error) {
	return j.base.Next()
}

func (j *Join) Rewind() error {
	if err := j.left.Rewind(); err != nil {
		return err
	}
	if err := j.right.Rewind(); err != nil {
		return err
	}
	j.currentLeft = nil
	j.base.MarkOpened()
	return nil
}

func (j *Join) Close() error {
	j.left.Close()
	j.right.Close()
	j.currentLeft = nil
	return j.base.Close()
}

func (j *Join) GetTupleDesc() *tuple.TupleDescription {
	return j.td
}
