package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/memory"
	"minirel/pkg/primitives"
	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

// Insert drains its child into a table through the buffer pool and
// emits a single one-field tuple holding the number of rows inserted.
// The count is produced exactly once per open; a second Next reports
// exhaustion.
type Insert struct {
	base    *BaseIterator
	tid     *primitives.TransactionID
	child   DbIterator
	tableID primitives.TableID
	store   *memory.PageStore
	td      *tuple.TupleDescription
	done    bool
}

// NewInsert creates an insert of child's tuples into tableID.
func NewInsert(tid *primitives.TransactionID, child DbIterator, tableID primitives.TableID, store *memory.PageStore) (*Insert, error) {
	if child == nil {
		return nil, errors.New("child iterator cannot be nil")
	}
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"inserted"})
	if err != nil {
		return nil, err
	}
	ins := &Insert{tid: tid, child: child, tableID: tableID, store: store, td: td}
	ins.base = NewBaseIterator(ins.readNext)
	return ins, nil
}

func (ins *Insert) Open() error {
	if err := ins.child.Open(); err != nil {
		return err
	}
	ins.done = false
	ins.base.MarkOpened()
	return nil
}

func (ins *Insert) readNext() (*tuple.Tuple, error) {
	if ins.done {
		return nil, nil
	}
	ins.done = true

	count := int64(0)
	for {
		hasNext, err := ins.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !hasNext {
			break
		}
		t, err := ins.child.Next()
		if err != nil {
			return nil, err
		}
		if err := ins.store.InsertTuple(ins.tid, ins.tableID, t); err != nil {
			return nil, err
		}
		count++
	}

	result, err := tuple.NewTuple(ins.td)
	if err != nil {
		return nil, err
	}
	if err := result.SetField(0, types.NewIntField(count)); err != nil {
		return nil, err
	}
	return result, nil
}

func (ins *Insert) HasNext() (bool, error) {
	return ins.base.HasNext()
}

func (ins *Insert) Next() (*tuple.Tuple, error) {
	return ins.base.Next()
}

func (ins *Insert) Rewind() error {
	if err := ins.child.Rewind(); err != nil {
		return err
	}
	ins.done = false
	ins.base.MarkOpened()
	return nil
}

func (ins *Insert) Close() error {
	ins.child.Close()
	return ins.base.Close()
}

func (ins *Insert) GetTupleDesc() *tuple.TupleDescription {
	return ins.td
}
