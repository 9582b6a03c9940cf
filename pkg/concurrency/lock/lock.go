package lock

import (
	"minirel/pkg/primitives"
)

// LockType is the strength of a page lock.
type LockType int

const (
	// SharedLock permits concurrent readers.
	SharedLock LockType = iota
	// ExclusiveLock permits a single writer and excludes all readers.
	ExclusiveLock
)

func (lt LockType) String() string {
	switch lt {
	case SharedLock:
		return "SHARED"
	case ExclusiveLock:
		return "EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// LockTypeFor maps a requested permission to the lock strength that
// satisfies it.
func LockTypeFor(perm primitives.Permissions) LockType {
	if perm == primitives.ReadWrite {
		return ExclusiveLock
	}
	return SharedLock
}

// Lock records one granted page lock: who holds it and how strongly.
type Lock struct {
	TID  *primitives.TransactionID
	Type LockType
}

// request is one blocked acquisition parked in a page's FIFO wait
// queue. The manager closes over granted to wake the waiter: true for
// a grant, false for cancellation.
type request struct {
	tid     *primitives.TransactionID
	pid     primitives.PageID
	perm    primitives.Permissions
	granted chan bool
}

func newRequest(tid *primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) *request {
	return &request{
		tid:     tid,
		pid:     pid,
		perm:    perm,
		granted: make(chan bool, 1),
	}
}
