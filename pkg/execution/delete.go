package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/memory"
	"minirel/pkg/primitives"
	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

// Delete removes every tuple its child produces, through the buffer
// pool, and emits a single one-field tuple holding the number of rows
// deleted. Like Insert, the count is produced exactly once per open.
type Delete struct {
	base  *BaseIterator
	tid   *primitives.TransactionID
	child DbIterator
	store *memory.PageStore
	td    *tuple.TupleDescription
	done  bool
}

// NewDelete creates a delete of child's tuples.
func NewDelete(tid *primitives.TransactionID, child DbIterator, store *memory.PageStore) (*Delete, error) {
	if child == nil {
		return nil, errors.New("child iterator cannot be nil")
	}
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"deleted"})
	if err != nil {
		return nil, err
	}
	d := &Delete{tid: tid, child: child, store: store, td: td}
	d.base = NewBaseIterator(d.readNext)
	return d, nil
}

func (d *Delete) Open() error {
	if err := d.child.Open(); err != nil {
		return err
	}
	d.done = false
	d.base.MarkOpened()
	return nil
}

func (d *Delete) readNext() (*tuple.Tuple, error) {
	if d.done {
		return nil, nil
	}
	d.done = true

	count := int64(0)
	for {
		hasNext, err := d.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !hasNext {
			break
		}
		t, err := d.child.Next()
		if err != nil {
			return nil, err
		}
		if err := d.store.DeleteTuple(d.tid, t); err != nil {
			return nil, err
		}
		count++
	}

	result, err := tuple.NewTuple(d.td)
	if err != nil {
		return nil, err
	}
	if err := result.SetField(0, types.NewIntField(count)); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Delete) HasNext() (bool, error) {
	return d.base.HasNext()
}

func (d *Delete) Next() (*tuple.Tuple, error) {
	return d.base.Next()
}

func (d *Delete) Rewind() error {
	if err := d.child.Rewind(); err != nil {
		return err
	}
	d.done = false
	d.base.MarkOpened()
	return nil
}

func (d *Delete) Close() error {
	d.child.Close()
	return d.base.Close()
}

func (d *Delete) GetTupleDesc() *tuple.TupleDescription {
	return d.td
}
