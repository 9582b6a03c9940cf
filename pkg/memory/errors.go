package memory

import (
	"fmt"

	"minirel/pkg/primitives"
)

// BufferPoolFullError reports that the cache is at capacity and every
// resident page is dirty, so no victim can be evicted without writing
// uncommitted data. Fatal to the requesting operation, not retryable:
// the workload's uncommitted working set exceeds the pool.
type BufferPoolFullError struct {
	Capacity int
}

func (e *BufferPoolFullError) Error() string {
	return fmt.Sprintf("buffer pool full: all %d resident pages are dirty", e.Capacity)
}

// TransactionAbortedError reports an operation issued on behalf of a
// transaction already marked aborted. The owner must finish the abort
// with TransactionComplete before starting fresh work.
type TransactionAbortedError struct {
	TID *primitives.TransactionID
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("transaction %v has been aborted", e.TID)
}

// PermissionDeniedError reports a page mutation attempted without the
// exclusive lock that should cover it, for example after the lock was
// dropped early with UnsafeReleasePage.
type PermissionDeniedError struct {
	TID *primitives.TransactionID
	PID primitives.PageID
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("transaction %v does not hold an exclusive lock on %v", e.TID, e.PID)
}
