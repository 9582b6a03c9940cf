package lock

import (
	"sync"

	"minirel/pkg/logging"
	"minirel/pkg/primitives"
)

// Manager grants, queues, and releases per-page locks under strict
// two-phase locking. Any number of shared holders may coexist; an
// exclusive holder excludes everyone else. Requests that cannot be
// granted park in a per-page FIFO queue; a request that would close a
// cycle in the wait-for graph fails immediately with DeadlockError
// instead of enqueuing.
//
// One transaction issues at most one blocking acquisition at a time,
// which is what makes the enqueue-time cycle check sound: a blocked
// transaction cannot grow the graph.
type Manager struct {
	mutex sync.Mutex
	table *lockTable
	queue *waitQueue
	graph *dependencyGraph
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		table: newLockTable(),
		queue: newWaitQueue(),
		graph: newDependencyGraph(),
	}
}

// AcquirePageLock blocks until tid holds pid with a strength
// satisfying perm. It returns nil on an already-sufficient or granted
// lock, DeadlockError if waiting would close a wait cycle, or
// ErrWaitCancelled if tid's locks were torn down while it waited.
func (m *Manager) AcquirePageLock(tid *primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) error {
	lockType := LockTypeFor(perm)

	m.mutex.Lock()

	if m.table.hasSufficientLock(tid, pid, lockType) {
		m.mutex.Unlock()
		return nil
	}

	if m.canGrantNow(tid, pid, lockType) {
		m.grantLocked(tid, pid, lockType)
		m.mutex.Unlock()
		return nil
	}

	// The request must wait. Record who it waits for, then refuse it
	// outright if that wait would close a cycle.
	for _, h := range m.table.holders(pid) {
		if !h.TID.Equals(tid) {
			m.graph.addEdge(tid.ID(), h.TID.ID())
		}
	}
	if m.graph.hasCycleFrom(tid.ID()) {
		m.graph.removeOutgoing(tid.ID())
		m.mutex.Unlock()
		logging.Debug("deadlock detected", "tid", tid.String(), "pid", pid.String())
		return &DeadlockError{TID: tid, PID: pid}
	}

	req := newRequest(tid, pid, perm)
	m.queue.enqueue(req)
	m.mutex.Unlock()

	if granted := <-req.granted; !granted {
		return ErrWaitCancelled
	}
	return nil
}

// canGrantNow applies the grant rule for an immediate (non-queued)
// request. An upgrade by the sole holder jumps the queue; every other
// grant defers to earlier waiters.
func (m *Manager) canGrantNow(tid *primitives.TransactionID, pid primitives.PageID, lockType LockType) bool {
	if m.isUpgradeBySoleHolder(tid, pid, lockType) {
		return true
	}
	if !m.queue.isEmpty(pid) {
		return false
	}
	return m.compatibleWithHolders(tid, pid, lockType)
}

// isUpgradeBySoleHolder reports the one case allowed to bypass FIFO
// order: tid already holds pid shared, is the only holder, and wants
// exclusive. Making it queue behind waiters that cannot proceed while
// it holds its shared lock would stall both sides.
func (m *Manager) isUpgradeBySoleHolder(tid *primitives.TransactionID, pid primitives.PageID, lockType LockType) bool {
	if lockType != ExclusiveLock {
		return false
	}
	holders := m.table.holders(pid)
	return len(holders) == 1 && holders[0].TID.Equals(tid)
}

// compatibleWithHolders applies the shared/exclusive compatibility
// rule against pid's current holders.
func (m *Manager) compatibleWithHolders(tid *primitives.TransactionID, pid primitives.PageID, lockType LockType) bool {
	holders := m.table.holders(pid)
	if lockType == SharedLock {
		for _, h := range holders {
			if h.Type == ExclusiveLock && !h.TID.Equals(tid) {
				return false
			}
		}
		return true
	}
	return len(holders) == 0 || (len(holders) == 1 && holders[0].TID.Equals(tid))
}

// grantLocked records the grant and repairs the wait-for graph: the
// grantee stops waiting, and every request still queued on pid now
// waits for the grantee.
func (m *Manager) grantLocked(tid *primitives.TransactionID, pid primitives.PageID, lockType LockType) {
	if m.table.holderEntry(tid, pid) != nil {
		m.table.upgradeLock(tid, pid)
	} else {
		m.table.addLock(tid, pid, lockType)
	}
	m.graph.removeOutgoing(tid.ID())

	for _, w := range m.queue.waiters(pid) {
		if !w.tid.Equals(tid) {
			m.graph.addEdge(w.tid.ID(), tid.ID())
		}
	}
}

// processWaitQueue grants as many queued requests for pid as the
// compatibility rule allows, in FIFO order from the head.
func (m *Manager) processWaitQueue(pid primitives.PageID) {
	for {
		head := m.queue.peek(pid)
		if head == nil {
			return
		}
		lockType := LockTypeFor(head.perm)
		if !m.compatibleWithHolders(head.tid, pid, lockType) {
			return
		}
		m.queue.dequeue(pid)
		m.grantLocked(head.tid, pid, lockType)
		head.granted <- true
	}
}

// ReleasePageLock removes tid's hold on pid and wakes any waiters that
// become grantable. Releasing a lock that is not held is a no-op.
func (m *Manager) ReleasePageLock(tid *primitives.TransactionID, pid primitives.PageID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.releasePageLocked(tid, pid)
}

func (m *Manager) releasePageLocked(tid *primitives.TransactionID, pid primitives.PageID) {
	if !m.table.releaseLock(tid, pid) {
		return
	}
	// Requests queued on pid no longer wait for tid through this page.
	for _, w := range m.queue.waiters(pid) {
		m.graph.removeEdge(w.tid.ID(), tid.ID())
	}
	m.processWaitQueue(pid)
}

// ReleaseAllLocks releases every lock tid holds and cancels any
// acquisition it has in flight. Idempotent for a transaction holding
// nothing.
func (m *Manager) ReleaseAllLocks(tid *primitives.TransactionID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, req := range m.queue.removeByTID(tid) {
		req.granted <- false
	}
	m.graph.removeOutgoing(tid.ID())

	for _, pid := range m.table.pagesHeldBy(tid) {
		m.releasePageLocked(tid, pid)
	}
	m.graph.removeNode(tid.ID())
}

// HoldsLock reports whether tid currently holds any lock on pid.
func (m *Manager) HoldsLock(tid *primitives.TransactionID, pid primitives.PageID) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.table.holderEntry(tid, pid) != nil
}

// HeldLockType returns the strength of tid's lock on pid, if held.
func (m *Manager) HeldLockType(tid *primitives.TransactionID, pid primitives.PageID) (LockType, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry := m.table.holderEntry(tid, pid)
	if entry == nil {
		return SharedLock, false
	}
	return entry.Type, true
}
