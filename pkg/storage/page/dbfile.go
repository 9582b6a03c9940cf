package page

import (
	"minirel/pkg/primitives"
	"minirel/pkg/tuple"
)

// DbFile is the on-disk representation of one table. It reads and
// writes whole pages; tuple-level mutations go through the buffer pool
// so that locking and dirty tracking stay centralized.
type DbFile interface {
	// ReadPage reads the identified page from disk.
	ReadPage(pid primitives.PageID) (Page, error)

	// WritePage writes the page back to disk at the offset implied by
	// its page number.
	WritePage(p Page) error

	// InsertTuple adds t to the file on behalf of tid, fetching pages
	// through pool so they are locked and cached. It returns every
	// page it modified.
	InsertTuple(tid *primitives.TransactionID, pool PageFetcher, t *tuple.Tuple) ([]Page, error)

	// DeleteTuple removes t, located by its RecordID, on behalf of
	// tid. It returns the page it modified.
	DeleteTuple(tid *primitives.TransactionID, pool PageFetcher, t *tuple.Tuple) (Page, error)

	// GetID returns the table identity of this file.
	GetID() primitives.TableID

	// GetTupleDesc returns the schema of tuples stored in this file.
	GetTupleDesc() *tuple.TupleDescription

	// NumPages returns the current page count of the file.
	NumPages() (primitives.PageNumber, error)

	// Close releases the underlying file handle.
	Close() error
}

// PageFetcher hands out cached pages under transactional locking. The
// buffer pool implements it; files take it as a parameter so that every
// page touched during a tuple mutation passes through the lock manager.
type PageFetcher interface {
	GetPage(tid *primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) (Page, error)
}
