package lock

import (
	"fmt"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// DeadlockError reports that granting a lock request would close a
// cycle in the wait-for graph. The requesting transaction must abort;
// the manager never enqueues a request it knows cannot be granted.
type DeadlockError struct {
	TID *primitives.TransactionID
	PID primitives.PageID
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock: %v waiting for %v would close a wait cycle", e.TID, e.PID)
}

// ErrWaitCancelled reports a blocked acquisition that was woken because
// its transaction's locks were torn down while it waited.
var ErrWaitCancelled = errors.New("lock wait cancelled")
