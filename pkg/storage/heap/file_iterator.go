package heap

import (
	"github.com/pkg/errors"

	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
	"minirel/pkg/tuple"
)

// fileIterator walks every live tuple of a heap file in page-number
// then slot order. Each page is fetched through the buffer pool under
// shared permission when the iterator first reaches it.
type fileIterator struct {
	file *HeapFile
	tid  *primitives.TransactionID
	pool page.PageFetcher

	opened      bool
	currentPage primitives.PageNumber
	pageTuples  []*tuple.Tuple
	pos         int
}

func newFileIterator(file *HeapFile, tid *primitives.TransactionID, pool page.PageFetcher) *fileIterator {
	return &fileIterator{file: file, tid: tid, pool: pool}
}

// Open positions the iterator before the first tuple.
func (it *fileIterator) Open() error {
	if it.opened {
		return errors.New("iterator already open")
	}
	it.opened = true
	it.currentPage = 0
	it.pageTuples = nil
	it.pos = 0
	return nil
}

// HasNext reports whether another tuple remains, loading further pages
// as needed.
func (it *fileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, errors.New("iterator not open")
	}

	for {
		if it.pos < len(it.pageTuples) {
			return true, nil
		}

		numPages, err := it.file.NumPages()
		if err != nil {
			return false, err
		}
		if it.currentPage >= numPages {
			return false, nil
		}

		if err := it.loadPage(it.currentPage); err != nil {
			return false, err
		}
		it.currentPage++
	}
}

func (it *fileIterator) loadPage(pageNo primitives.PageNumber) error {
	pid := primitives.NewPageID(it.file.GetID(), pageNo)
	p, err := it.pool.GetPage(it.tid, pid, primitives.ReadOnly)
	if err != nil {
		return err
	}
	hp, ok := p.(*HeapPage)
	if !ok {
		return errors.Errorf("page %v is not a heap page", pid)
	}

	it.pageTuples = it.pageTuples[:0]
	it.pos = 0
	for i := 0; i < hp.GetNumSlots(); i++ {
		slot := primitives.SlotID(i)
		if !hp.IsSlotUsed(slot) {
			continue
		}
		t, err := hp.GetTuple(slot)
		if err != nil {
			return err
		}
		it.pageTuples = append(it.pageTuples, t)
	}
	return nil
}

// Next returns the next tuple. Callers must check HasNext first.
func (it *fileIterator) Next() (*tuple.Tuple, error) {
	hasNext, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, errors.New("no more tuples")
	}
	t := it.pageTuples[it.pos]
	it.pos++
	return t, nil
}

// Rewind restarts the iteration from the first page.
func (it *fileIterator) Rewind() error {
	if !it.opened {
		return errors.New("iterator not open")
	}
	it.currentPage = 0
	it.pageTuples = nil
	it.pos = 0
	return nil
}

// Close ends the iteration. The iterator may be reopened.
func (it *fileIterator) Close() error {
	it.opened = false
	it.pageTuples = nil
	it.pos = 0
	return nil
}
