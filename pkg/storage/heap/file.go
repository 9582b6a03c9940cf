package heap

import (
	"github.com/pkg/errors"

	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
	"minirel/pkg/tuple"
)

// HeapFile stores one table as an unordered, append-growable sequence
// of HeapPages. Page count is always derived from the current file
// size, so concurrent growth is visible immediately.
//
// Tuple-level mutations fetch their pages through a PageFetcher so the
// buffer pool can lock and cache every page touched.
type HeapFile struct {
	*page.BaseFile
	td *tuple.TupleDescription
}

var _ page.DbFile = (*HeapFile)(nil)

// NewHeapFile opens (creating if absent) the heap file at filePath
// holding tuples with schema td.
func NewHeapFile(filePath primitives.Filepath, td *tuple.TupleDescription) (*HeapFile, error) {
	if td == nil {
		return nil, errors.New("schema cannot be nil")
	}
	bf, err := page.NewBaseFile(filePath)
	if err != nil {
		return nil, err
	}
	return &HeapFile{BaseFile: bf, td: td}, nil
}

// GetTupleDesc returns the schema of tuples stored in this file.
func (hf *HeapFile) GetTupleDesc() *tuple.TupleDescription {
	return hf.td
}

// ReadPage reads and decodes the identified page. The page must belong
// to this file; reading past the end of the file fails with
// PageNotFoundError.
func (hf *HeapFile) ReadPage(pid primitives.PageID) (page.Page, error) {
	if pid.Table != hf.GetID() {
		return nil, errors.Errorf("page %v does not belong to table %d", pid, hf.GetID())
	}

	data, err := hf.ReadPageData(pid.Page)
	if err != nil {
		return nil, err
	}
	return NewHeapPage(pid, data, hf.td)
}

// WritePage serializes p and writes it at the offset implied by its
// page number.
func (hf *HeapFile) WritePage(p page.Page) error {
	if p == nil {
		return errors.New("page cannot be nil")
	}
	pid := p.GetID()
	if pid.Table != hf.GetID() {
		return errors.Errorf("page %v does not belong to table %d", pid, hf.GetID())
	}
	return hf.WritePageData(pid.Page, p.GetPageData())
}

// InsertTuple adds t to the first page with a free slot, scanning pages
// in increasing page-number order under exclusive permission. If every
// page is full it appends one new empty page and inserts there. Returns
// the pages modified, normally one.
func (hf *HeapFile) InsertTuple(tid *primitives.TransactionID, pool page.PageFetcher, t *tuple.Tuple) ([]page.Page, error) {
	if t == nil {
		return nil, errors.New("tuple cannot be nil")
	}
	if pool == nil {
		return nil, errors.New("page fetcher cannot be nil")
	}

	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}

	for pageNo := primitives.PageNumber(0); pageNo < numPages; pageNo++ {
		pid := primitives.NewPageID(hf.GetID(), pageNo)
		p, err := pool.GetPage(tid, pid, primitives.ReadWrite)
		if err != nil {
			return nil, err
		}
		hp, ok := p.(*HeapPage)
		if !ok {
			return nil, errors.Errorf("page %v is not a heap page", pid)
		}
		if hp.GetNumEmptySlots() == 0 {
			continue
		}
		if err := hp.AddTuple(t); err != nil {
			return nil, err
		}
		return []page.Page{hp}, nil
	}

	return hf.insertIntoNewPage(tid, pool, t)
}

// insertIntoNewPage grows the file by one zero-filled page, which
// decodes as all-empty, then routes the fetch through the pool so the
// new page is locked and cached like any other.
func (hf *HeapFile) insertIntoNewPage(tid *primitives.TransactionID, pool page.PageFetcher, t *tuple.Tuple) ([]page.Page, error) {
	pageNo, err := hf.AllocateNewPage()
	if err != nil {
		return nil, err
	}

	pid := primitives.NewPageID(hf.GetID(), pageNo)
	p, err := pool.GetPage(tid, pid, primitives.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp, ok := p.(*HeapPage)
	if !ok {
		return nil, errors.Errorf("page %v is not a heap page", pid)
	}
	if err := hp.AddTuple(t); err != nil {
		return nil, err
	}
	return []page.Page{hp}, nil
}

// DeleteTuple removes t from the page named by its RecordID, which must
// belong to this file.
func (hf *HeapFile) DeleteTuple(tid *primitives.TransactionID, pool page.PageFetcher, t *tuple.Tuple) (page.Page, error) {
	if t == nil {
		return nil, errors.New("tuple cannot be nil")
	}
	if pool == nil {
		return nil, errors.New("page fetcher cannot be nil")
	}
	if t.RecordID == nil {
		return nil, &page.TupleNotFoundError{Reason: "tuple has no record id"}
	}
	if t.RecordID.PID.Table != hf.GetID() {
		return nil, &page.TupleNotFoundError{
			PID:    t.RecordID.PID,
			Slot:   t.RecordID.Slot,
			Reason: "tuple belongs to a different table",
		}
	}

	p, err := pool.GetPage(tid, t.RecordID.PID, primitives.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp, ok := p.(*HeapPage)
	if !ok {
		return nil, errors.Errorf("page %v is not a heap page", t.RecordID.PID)
	}
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return hp, nil
}

// Iterator returns a rewindable iterator over every live tuple in the
// file, in page-number then slot order. Pages are fetched through pool
// under shared permission.
func (hf *HeapFile) Iterator(tid *primitives.TransactionID, pool page.PageFetcher) tuple.Iterator {
	return newFileIterator(hf, tid, pool)
}
