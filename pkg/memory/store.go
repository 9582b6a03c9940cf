package memory

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"minirel/pkg/concurrency/lock"
	"minirel/pkg/log"
	"minirel/pkg/logging"
	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
	"minirel/pkg/tuple"
)

// DefaultCapacity is the default number of resident pages.
const DefaultCapacity = 50

// Config carries the buffer pool's tunables. A zero Capacity falls
// back to DefaultCapacity.
type Config struct {
	Capacity int
}

// TableResolver maps a table identifier to its open file. The catalog
// implements it.
type TableResolver interface {
	GetDbFile(tableID primitives.TableID) (page.DbFile, error)
}

// LogSink is the durable log the store writes ahead of page flushes.
// *log.WAL satisfies it; a nil sink disables logging.
type LogSink interface {
	LogBegin(tid *primitives.TransactionID) (log.LSN, error)
	LogWrite(tid *primitives.TransactionID, p page.Page) (log.LSN, error)
	LogCommit(tid *primitives.TransactionID) (log.LSN, error)
	LogAbort(tid *primitives.TransactionID) (log.LSN, error)
	Force() error
}

// PageStore is the buffer pool: the single point of mediated access to
// page content. Every page request passes through the lock manager;
// misses load from the owning file, evicting the least recently used
// clean page under capacity pressure. Dirty pages are never evicted or
// flushed before their transaction commits (no-steal), and a commit
// flushes all of its pages before returning (force).
//
// The only blocking point is lock acquisition inside GetPage; all
// other operations complete without suspending.
type PageStore struct {
	mu       sync.Mutex
	capacity int
	cache    PageCache
	lockMgr  *lock.Manager
	resolver TableResolver
	sink     LogSink
	txs      map[int64]*txContext
}

var _ page.PageFetcher = (*PageStore)(nil)

// NewPageStore creates a buffer pool over the given catalog. sink may
// be nil to run without a write-ahead log.
func NewPageStore(cfg Config, resolver TableResolver, sink LogSink) *PageStore {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PageStore{
		capacity: capacity,
		cache:    NewLRUPageCache(),
		lockMgr:  lock.NewManager(),
		resolver: resolver,
		sink:     sink,
		txs:      make(map[int64]*txContext),
	}
}

// Capacity returns the configured resident-page limit.
func (ps *PageStore) Capacity() int {
	return ps.capacity
}

// GetPage returns the identified page after acquiring the lock that
// perm requires, blocking if another transaction holds a conflicting
// lock. It fails with DeadlockError when waiting would close a wait
// cycle and with TransactionAbortedError when tid has been marked
// aborted.
func (ps *PageStore) GetPage(tid *primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) (page.Page, error) {
	if tid == nil {
		return nil, pkgerrors.New("transaction id cannot be nil")
	}
	if ps.isAborted(tid) {
		return nil, &TransactionAbortedError{TID: tid}
	}

	if err := ps.lockMgr.AcquirePageLock(tid, pid, perm); err != nil {
		if pkgerrors.Is(err, lock.ErrWaitCancelled) {
			return nil, &TransactionAbortedError{TID: tid}
		}
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	tx, err := ps.getOrCreateTxLocked(tid)
	if err != nil {
		return nil, err
	}
	if tx.aborted {
		return nil, &TransactionAbortedError{TID: tid}
	}

	if p, ok := ps.cache.Get(pid); ok {
		return p, nil
	}

	file, err := ps.resolver.GetDbFile(pid.Table)
	if err != nil {
		return nil, err
	}
	p, err := file.ReadPage(pid)
	if err != nil {
		return nil, err
	}

	if err := ps.makeRoomLocked(); err != nil {
		return nil, err
	}
	ps.cache.Put(pid, p)
	return p, nil
}

func (ps *PageStore) getOrCreateTxLocked(tid *primitives.TransactionID) (*txContext, error) {
	if tx, ok := ps.txs[tid.ID()]; ok {
		return tx, nil
	}
	if ps.sink != nil {
		if _, err := ps.sink.LogBegin(tid); err != nil {
			return nil, pkgerrors.Wrap(err, "log transaction begin")
		}
	}
	tx := newTxContext(tid)
	ps.txs[tid.ID()] = tx
	return tx, nil
}

// makeRoomLocked evicts the least recently used clean page when the
// cache is at capacity. Dirty pages are never victims; if nothing is
// clean the pool is full.
func (ps *PageStore) makeRoomLocked() error {
	if ps.cache.Size() < ps.capacity {
		return nil
	}
	for _, p := range ps.cache.GetAll() {
		if p.IsDirty() != nil {
			continue
		}
		ps.cache.Remove(p.GetID())
		return nil
	}
	return &BufferPoolFullError{Capacity: ps.capacity}
}

// InsertTuple adds t to the named table on behalf of tid, locking and
// dirtying every page the insert touches.
func (ps *PageStore) InsertTuple(tid *primitives.TransactionID, tableID primitives.TableID, t *tuple.Tuple) error {
	if ps.isAborted(tid) {
		return &TransactionAbortedError{TID: tid}
	}
	file, err := ps.resolver.GetDbFile(tableID)
	if err != nil {
		return err
	}
	pages, err := file.InsertTuple(tid, ps, t)
	if err != nil {
		return err
	}
	return ps.markPagesDirty(tid, pages)
}

// DeleteTuple removes t, located by its RecordID, on behalf of tid.
func (ps *PageStore) DeleteTuple(tid *primitives.TransactionID, t *tuple.Tuple) error {
	if ps.isAborted(tid) {
		return &TransactionAbortedError{TID: tid}
	}
	if t == nil || t.RecordID == nil {
		return &page.TupleNotFoundError{Reason: "tuple has no record id"}
	}
	file, err := ps.resolver.GetDbFile(t.RecordID.PID.Table)
	if err != nil {
		return err
	}
	p, err := file.DeleteTuple(tid, ps, t)
	if err != nil {
		return err
	}
	return ps.markPagesDirty(tid, []page.Page{p})
}

// markPagesDirty tags mutated pages with their owning transaction and
// records them in its dirtied set. Mutating a page without holding its
// exclusive lock, for example after UnsafeReleasePage, is refused.
func (ps *PageStore) markPagesDirty(tid *primitives.TransactionID, pages []page.Page) error {
	for _, p := range pages {
		lockType, held := ps.lockMgr.HeldLockType(tid, p.GetID())
		if !held || lockType != lock.ExclusiveLock {
			return &PermissionDeniedError{TID: tid, PID: p.GetID()}
		}
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	tx, err := ps.getOrCreateTxLocked(tid)
	if err != nil {
		return err
	}
	for _, p := range pages {
		p.MarkDirty(true, tid)
		tx.markDirtied(p.GetID())
		if _, ok := ps.cache.Get(p.GetID()); !ok {
			if err := ps.makeRoomLocked(); err != nil {
				return err
			}
			ps.cache.Put(p.GetID(), p)
		}
	}
	return nil
}

// FlushPage writes the identified page to disk if it is resident and
// dirty, logging its after-image first. Absent or clean pages are a
// no-op.
func (ps *PageStore) FlushPage(pid primitives.PageID) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.flushPageLocked(pid)
}

func (ps *PageStore) flushPageLocked(pid primitives.PageID) error {
	p, ok := ps.cache.Get(pid)
	if !ok {
		return nil
	}
	dirtier := p.IsDirty()
	if dirtier == nil {
		return nil
	}

	if ps.sink != nil {
		if _, err := ps.sink.LogWrite(dirtier, p); err != nil {
			return pkgerrors.Wrap(err, "log page write")
		}
		if err := ps.sink.Force(); err != nil {
			return pkgerrors.Wrap(err, "force log")
		}
	}

	file, err := ps.resolver.GetDbFile(pid.Table)
	if err != nil {
		return err
	}
	if err := file.WritePage(p); err != nil {
		return pkgerrors.Wrapf(err, "flush page %v", pid)
	}
	p.MarkDirty(false, nil)
	p.SetBeforeImage()
	return nil
}

// FlushAllPages writes every resident dirty page to disk. Intended for
// shutdown and tests; it ignores the no-steal rule, so it must not run
// concurrently with active transactions.
func (ps *PageStore) FlushAllPages() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, p := range ps.cache.GetAll() {
		if p.IsDirty() == nil {
			continue
		}
		if err := ps.flushPageLocked(p.GetID()); err != nil {
			return err
		}
	}
	return nil
}

// TransactionComplete ends tid. On commit every page it dirtied is
// flushed before the call returns; on abort every dirtied page is
// discarded from the cache so later reads reload the pre-transaction
// disk image. A commit whose flush fails ends as an abort: the dirtied
// pages are discarded and the error is returned. Either way the
// transaction's locks are released only after the pages are dealt with.
func (ps *PageStore) TransactionComplete(tid *primitives.TransactionID, commit bool) error {
	if tid == nil {
		return pkgerrors.New("transaction id cannot be nil")
	}

	ps.mu.Lock()
	tx, ok := ps.txs[tid.ID()]
	if !ok {
		ps.mu.Unlock()
		ps.lockMgr.ReleaseAllLocks(tid)
		return nil
	}
	dirtied := tx.dirtiedPages()
	ps.mu.Unlock()

	var err error
	if commit {
		err = ps.commitPages(tid, dirtied)
		if err != nil {
			if abortErr := ps.abortPages(tid, dirtied); abortErr != nil {
				logging.WithTx(tid).Error("abort after failed commit", "error", abortErr)
			}
		}
	} else {
		err = ps.abortPages(tid, dirtied)
	}

	ps.mu.Lock()
	delete(ps.txs, tid.ID())
	ps.mu.Unlock()
	ps.lockMgr.ReleaseAllLocks(tid)

	if err != nil {
		return err
	}
	logging.WithTx(tid).Debug("transaction complete", "commit", commit, "pages", len(dirtied))
	return nil
}

// commitPages makes every dirtied page durable: after-images reach the
// log first, then the data writes fan out in parallel, one goroutine
// per page, and finally the commit record is forced.
func (ps *PageStore) commitPages(tid *primitives.TransactionID, dirtied []primitives.PageID) error {
	type flushEntry struct {
		p    page.Page
		file page.DbFile
	}

	ps.mu.Lock()
	entries := make([]flushEntry, 0, len(dirtied))
	for _, pid := range dirtied {
		p, ok := ps.cache.Get(pid)
		if !ok || p.IsDirty() == nil {
			continue
		}
		file, err := ps.resolver.GetDbFile(pid.Table)
		if err != nil {
			ps.mu.Unlock()
			return err
		}
		entries = append(entries, flushEntry{p: p, file: file})
	}
	ps.mu.Unlock()

	if ps.sink != nil {
		for _, e := range entries {
			if _, err := ps.sink.LogWrite(tid, e.p); err != nil {
				return pkgerrors.Wrap(err, "log page write")
			}
		}
		if err := ps.sink.Force(); err != nil {
			return pkgerrors.Wrap(err, "force log")
		}
	}

	// The committer still holds exclusive locks on each dirtied page,
	// so nothing mutates them while the writes run.
	var g errgroup.Group
	for _, e := range entries {
		e := e
		g.Go(func() error {
			return e.file.WritePage(e.p)
		})
	}
	if err := g.Wait(); err != nil {
		return pkgerrors.Wrap(err, "commit flush")
	}

	ps.mu.Lock()
	for _, e := range entries {
		e.p.MarkDirty(false, nil)
		e.p.SetBeforeImage()
	}
	ps.mu.Unlock()

	if ps.sink != nil {
		if _, err := ps.sink.LogCommit(tid); err != nil {
			return pkgerrors.Wrap(err, "log commit")
		}
	}
	return nil
}

// abortPages drops the transaction's dirty pages from the cache; their
// uncommitted contents never reach disk, so the on-disk image is the
// rollback state.
func (ps *PageStore) abortPages(tid *primitives.TransactionID, dirtied []primitives.PageID) error {
	if ps.sink != nil {
		if _, err := ps.sink.LogAbort(tid); err != nil {
			return pkgerrors.Wrap(err, "log abort")
		}
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, pid := range dirtied {
		p, ok := ps.cache.Get(pid)
		if !ok {
			continue
		}
		if dirtier := p.IsDirty(); dirtier != nil && dirtier.Equals(tid) {
			ps.cache.Remove(pid)
		}
	}
	return nil
}

// CommitTransaction is TransactionComplete(tid, true).
func (ps *PageStore) CommitTransaction(tid *primitives.TransactionID) error {
	return ps.TransactionComplete(tid, true)
}

// AbortTransaction is TransactionComplete(tid, false).
func (ps *PageStore) AbortTransaction(tid *primitives.TransactionID) error {
	return ps.TransactionComplete(tid, false)
}

// MarkAborted flags tid so its subsequent page requests fail with
// TransactionAbortedError. The owner still finishes the abort with
// TransactionComplete.
func (ps *PageStore) MarkAborted(tid *primitives.TransactionID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if tx, ok := ps.txs[tid.ID()]; ok {
		tx.aborted = true
	} else {
		tx := newTxContext(tid)
		tx.aborted = true
		ps.txs[tid.ID()] = tx
	}
}

func (ps *PageStore) isAborted(tid *primitives.TransactionID) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	tx, ok := ps.txs[tid.ID()]
	return ok && tx.aborted
}

// DiscardPage drops the identified page from the cache without
// flushing, regardless of its dirty state. Used by rollback and
// recovery paths that must guarantee a stale page is never served.
func (ps *PageStore) DiscardPage(pid primitives.PageID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.cache.Remove(pid)
}

// UnsafeReleasePage releases tid's lock on a single page without
// transaction-completion semantics. This breaks two-phase locking if
// the transaction touches the page again, so it exists only for
// narrow caller-verified cases.
func (ps *PageStore) UnsafeReleasePage(tid *primitives.TransactionID, pid primitives.PageID) {
	ps.lockMgr.ReleasePageLock(tid, pid)
}

// HoldsLock reports whether tid holds any lock on pid.
func (ps *PageStore) HoldsLock(tid *primitives.TransactionID, pid primitives.PageID) bool {
	return ps.lockMgr.HoldsLock(tid, pid)
}

// CachedPages returns the number of resident pages.
func (ps *PageStore) CachedPages() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.cache.Size()
}

// Close flushes every dirty page. It does not close table files or the
// log; their owners do that.
func (ps *PageStore) Close() error {
	return ps.FlushAllPages()
}
