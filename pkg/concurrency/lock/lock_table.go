package lock

import (
	"minirel/pkg/primitives"
)

// lockTable tracks which transactions hold which page locks. It is a
// plain data structure; the manager's mutex guards every call.
type lockTable struct {
	// pageHolders maps a page to its current lock holders. The
	// invariant: either one exclusive holder, or any number of shared
	// holders, never both.
	pageHolders map[primitives.PageID][]*Lock

	// txPages maps a transaction (by numeric id) to the set of pages
	// it holds, for O(held) release-all.
	txPages map[int64]map[primitives.PageID]struct{}
}

func newLockTable() *lockTable {
	return &lockTable{
		pageHolders: make(map[primitives.PageID][]*Lock),
		txPages:     make(map[int64]map[primitives.PageID]struct{}),
	}
}

// holders returns the current lock holders of pid.
func (lt *lockTable) holders(pid primitives.PageID) []*Lock {
	return lt.pageHolders[pid]
}

// holderEntry returns tid's lock on pid, if any.
func (lt *lockTable) holderEntry(tid *primitives.TransactionID, pid primitives.PageID) *Lock {
	for _, l := range lt.pageHolders[pid] {
		if l.TID.Equals(tid) {
			return l
		}
	}
	return nil
}

// hasSufficientLock reports whether tid already holds pid with at least
// the strength lockType.
func (lt *lockTable) hasSufficientLock(tid *primitives.TransactionID, pid primitives.PageID, lockType LockType) bool {
	entry := lt.holderEntry(tid, pid)
	if entry == nil {
		return false
	}
	return entry.Type == ExclusiveLock || lockType == SharedLock
}

// addLock records a new grant of pid to tid.
func (lt *lockTable) addLock(tid *primitives.TransactionID, pid primitives.PageID, lockType LockType) {
	lt.pageHolders[pid] = append(lt.pageHolders[pid], &Lock{TID: tid, Type: lockType})

	pages, ok := lt.txPages[tid.ID()]
	if !ok {
		pages = make(map[primitives.PageID]struct{})
		lt.txPages[tid.ID()] = pages
	}
	pages[pid] = struct{}{}
}

// upgradeLock strengthens tid's existing shared lock on pid to
// exclusive. It reports whether an entry was found to upgrade.
func (lt *lockTable) upgradeLock(tid *primitives.TransactionID, pid primitives.PageID) bool {
	entry := lt.holderEntry(tid, pid)
	if entry == nil {
		return false
	}
	entry.Type = ExclusiveLock
	return true
}

// releaseLock removes tid's hold on pid. It reports whether a lock was
// actually held.
func (lt *lockTable) releaseLock(tid *primitives.TransactionID, pid primitives.PageID) bool {
	holders := lt.pageHolders[pid]
	for i, l := range holders {
		if !l.TID.Equals(tid) {
			continue
		}
		holders = append(holders[:i], holders[i+1:]...)
		if len(holders) == 0 {
			delete(lt.pageHolders, pid)
		} else {
			lt.pageHolders[pid] = holders
		}
		if pages, ok := lt.txPages[tid.ID()]; ok {
			delete(pages, pid)
			if len(pages) == 0 {
				delete(lt.txPages, tid.ID())
			}
		}
		return true
	}
	return false
}

// pagesHeldBy returns every page tid currently holds.
func (lt *lockTable) pagesHeldBy(tid *primitives.TransactionID) []primitives.PageID {
	pages := lt.txPages[tid.ID()]
	out := make([]primitives.PageID, 0, len(pages))
	for pid := range pages {
		out = append(out, pid)
	}
	return out
}
