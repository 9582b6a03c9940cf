package execution

import (
	"github.com/pkg/errors"

	"minirel/pkg/memory"
	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
	"minirel/pkg/tuple"
)

// scannableFile is the slice of the file API a scan needs; heap files
// satisfy it.
type scannableFile interface {
	Iterator(tid *primitives.TransactionID, pool page.PageFetcher) tuple.Iterator
}

// SeqScan reads every tuple of one table in storage order, fetching
// pages through the buffer pool under shared permission.
type SeqScan struct {
	base     *BaseIterator
	tid      *primitives.TransactionID
	tableID  primitives.TableID
	store    *memory.PageStore
	resolver memory.TableResolver
	td       *tuple.TupleDescription
	fileIter tuple.Iterator
}

// NewSeqScan creates a scan of tableID on behalf of tid.
func NewSeqScan(tid *primitives.TransactionID, tableID primitives.TableID, store *memory.PageStore, resolver memory.TableResolver) (*SeqScan, error) {
	if store == nil || resolver == nil {
		return nil, errors.New("store and resolver cannot be nil")
	}
	file, err := resolver.GetDbFile(tableID)
	if err != nil {
		return nil, err
	}

	ss := &SeqScan{
		tid:      tid,
		tableID:  tableID,
		store:    store,
		resolver: resolver,
		td:       file.GetTupleDesc(),
	}
	ss.base = NewBaseIterator(ss.readNext)
	return ss, nil
}

func (ss *SeqScan) Open() error {
	file, err := ss.resolver.GetDbFile(ss.tableID)
	if err != nil {
		return err
	}
	sf, ok := file.(scannableFile)
	if !ok {
		return errors.Errorf("table %d does not support scans", ss.tableID)
	}

	ss.fileIter = sf.Iterator(ss.tid, ss.store)
	if err := ss.fileIter.Open(); err != nil {
		return err
	}
	ss.base.MarkOpened()
	return nil
}

func (ss *SeqScan) readNext() (*tuple.Tuple, error) {
	if ss.fileIter == nil {
		return nil, errors.New("scan not opened")
	}
	hasNext, err := ss.fileIter.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, nil
	}
	return ss.fileIter.Next()
}

func (ss *SeqScan) HasNext() (bool, error) {
	return ss.base.HasNext()
}

func (ss *SeqScan) Next() (*tuple.Tuple, error) {
	return ss.base.Next()
}

func (ss *SeqScan) Rewind() error {
	if ss.fileIter == nil {
		return errors.New("scan not opened")
	}
	if err := ss.fileIter.Rewind(); err != nil {
		return err
	}
	ss.base.MarkOpened()
	return nil
}

func (ss *SeqScan) Close() error {
	if ss.fileIter != nil {
		ss.fileIter.Close()
		ss.fileIter = nil
	}
	return ss.base.Close()
}

func (ss *SeqScan) GetTupleDesc() *tuple.TupleDescription {
	return ss.td
}
