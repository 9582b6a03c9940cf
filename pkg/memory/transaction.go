package memory

import (
	"time"

	"minirel/pkg/primitives"
)

// txContext is the store's per-transaction bookkeeping: which pages
// the transaction dirtied and whether it has been marked aborted.
// Commit flushes exactly the dirtied set; abort discards it.
type txContext struct {
	tid     *primitives.TransactionID
	dirtied map[primitives.PageID]struct{}
	aborted bool
	started time.Time
}

func newTxContext(tid *primitives.TransactionID) *txContext {
	return &txContext{
		tid:     tid,
		dirtied: make(map[primitives.PageID]struct{}),
		started: time.Now(),
	}
}

func (tx *txContext) markDirtied(pid primitives.PageID) {
	tx.dirtied[pid] = struct{}{}
}

// dirtiedPages returns the dirtied set as a slice, in no particular
// order.
func (tx *txContext) dirtiedPages() []primitives.PageID {
	out := make([]primitives.PageID, 0, len(tx.dirtied))
	for pid := range tx.dirtied {
		out = append(out, pid)
	}
	return out
}
