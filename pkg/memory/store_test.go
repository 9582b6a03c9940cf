package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"minirel/pkg/catalog"
	"minirel/pkg/concurrency/lock"
	"minirel/pkg/primitives"
	"minirel/pkg/storage/heap"
	"minirel/pkg/storage/page"
	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

type testEnv struct {
	store *PageStore
	cat   *catalog.Catalog
	file  *heap.HeapFile
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()
	td, err := tuple.NewTupleDesc(
		[]types.Type{types.IntType, types.StringType},
		[]string{"id", "name"},
	)
	require.NoError(t, err)

	path := primitives.Filepath(filepath.Join(t.TempDir(), "table.dat"))
	hf, err := heap.NewHeapFile(path, td)
	require.NoError(t, err)
	t.Cleanup(func() { hf.Close() })

	cat := catalog.NewCatalog()
	require.NoError(t, cat.AddTable(hf, "test"))

	return &testEnv{
		store: NewPageStore(Config{Capacity: capacity}, cat, nil),
		cat:   cat,
		file:  hf,
	}
}

func (e *testEnv) makeTuple(t *testing.T, id int64, name string) *tuple.Tuple {
	t.Helper()
	tup, err := tuple.NewTuple(e.file.GetTupleDesc())
	require.NoError(t, err)
	require.NoError(t, tup.SetField(0, types.NewIntField(id)))
	require.NoError(t, tup.SetField(1, types.NewStringField(name)))
	return tup
}

// seedPages writes n pages straight to disk, each holding one tuple,
// bypassing the store entirely.
func (e *testEnv) seedPages(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		pid := primitives.NewPageID(e.file.GetID(), primitives.PageNumber(i))
		hp, err := heap.NewEmptyHeapPage(pid, e.file.GetTupleDesc())
		require.NoError(t, err)
		require.NoError(t, hp.AddTuple(e.makeTuple(t, int64(i), "seed")))
		require.NoError(t, e.file.WritePage(hp))
	}
}

func (e *testEnv) pid(n int) primitives.PageID {
	return primitives.NewPageID(e.file.GetID(), primitives.PageNumber(n))
}

func TestSharedReadersDoNotBlock(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	t1 := primitives.NewTransactionID()
	t2 := primitives.NewTransactionID()

	p1, err := env.store.GetPage(t1, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)
	p2, err := env.store.GetPage(t2, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)

	assert.Same(t, p1, p2, "one resident instance per page")
	assert.True(t, env.store.HoldsLock(t1, env.pid(0)))
	assert.True(t, env.store.HoldsLock(t2, env.pid(0)))
}

func TestWriterBlocksUntilReaderCompletes(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	reader := primitives.NewTransactionID()
	writer := primitives.NewTransactionID()

	_, err := env.store.GetPage(reader, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := env.store.GetPage(writer, env.pid(0), primitives.ReadWrite)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("writer should have blocked, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, env.store.TransactionComplete(reader, true))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("writer never woke up")
	}
	require.NoError(t, env.store.TransactionComplete(writer, true))
}

func TestDeadlockExactlyOneLoser(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 2)

	t1 := primitives.NewTransactionID()
	t2 := primitives.NewTransactionID()

	_, err := env.store.GetPage(t1, env.pid(0), primitives.ReadWrite)
	require.NoError(t, err)
	_, err = env.store.GetPage(t2, env.pid(1), primitives.ReadWrite)
	require.NoError(t, err)

	t1Done := make(chan error, 1)
	go func() {
		_, err := env.store.GetPage(t1, env.pid(1), primitives.ReadWrite)
		t1Done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	// Closing the cycle must fail immediately for the requester.
	_, err = env.store.GetPage(t2, env.pid(0), primitives.ReadWrite)
	require.Error(t, err)
	var deadlock *lock.DeadlockError
	require.ErrorAs(t, err, &deadlock)

	// The loser aborts; the survivor proceeds.
	require.NoError(t, env.store.TransactionComplete(t2, false))
	select {
	case err := <-t1Done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("survivor never acquired the lock")
	}
	require.NoError(t, env.store.TransactionComplete(t1, true))
}

func TestNoStealBufferPoolFull(t *testing.T) {
	const capacity = 3
	env := newTestEnv(t, capacity)
	env.seedPages(t, capacity+1)

	tid := primitives.NewTransactionID()

	// Dirty every slot in the pool by deleting the seeded tuple from
	// each of the first three pages.
	for i := 0; i < capacity; i++ {
		victim, err := env.file.ReadPage(env.pid(i))
		require.NoError(t, err)
		tup, err := victim.(*heap.HeapPage).GetTuple(0)
		require.NoError(t, err)
		require.NoError(t, env.store.DeleteTuple(tid, tup))
	}
	require.Equal(t, capacity, env.store.CachedPages())

	// With every resident page dirty there is no victim.
	_, err := env.store.GetPage(tid, env.pid(capacity), primitives.ReadOnly)
	require.Error(t, err)
	var full *BufferPoolFullError
	require.ErrorAs(t, err, &full)

	// Committing cleans the pool and the read succeeds.
	require.NoError(t, env.store.TransactionComplete(tid, true))
	t2 := primitives.NewTransactionID()
	_, err = env.store.GetPage(t2, env.pid(capacity), primitives.ReadOnly)
	require.NoError(t, err)
	require.NoError(t, env.store.TransactionComplete(t2, true))
}

func TestEvictionKeepsPoolWithinCapacity(t *testing.T) {
	const capacity = 2
	env := newTestEnv(t, capacity)
	env.seedPages(t, 5)

	for i := 0; i < 5; i++ {
		tid := primitives.NewTransactionID()
		_, err := env.store.GetPage(tid, env.pid(i), primitives.ReadOnly)
		require.NoError(t, err)
		require.NoError(t, env.store.TransactionComplete(tid, true))
		assert.LessOrEqual(t, env.store.CachedPages(), capacity)
	}
}

func TestCommitDurability(t *testing.T) {
	env := newTestEnv(t, 10)
	tid := primitives.NewTransactionID()

	inserted := env.makeTuple(t, 42, "durable")
	require.NoError(t, env.store.InsertTuple(tid, env.file.GetID(), inserted))
	require.NoError(t, env.store.TransactionComplete(tid, true))

	// Drop the cached copy and reload straight from disk.
	env.store.DiscardPage(env.pid(0))
	reread, err := env.file.ReadPage(env.pid(0))
	require.NoError(t, err)
	got, err := reread.(*heap.HeapPage).GetTuple(0)
	require.NoError(t, err)
	assert.True(t, got.Equals(env.makeTuple(t, 42, "durable")))
}

func TestAbortRollsBackInsert(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	tid := primitives.NewTransactionID()
	require.NoError(t, env.store.InsertTuple(tid, env.file.GetID(), env.makeTuple(t, 99, "doomed")))
	require.NoError(t, env.store.TransactionComplete(tid, false))

	// A later read must see the pre-transaction disk image.
	t2 := primitives.NewTransactionID()
	p, err := env.store.GetPage(t2, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)
	hp := p.(*heap.HeapPage)
	assert.True(t, hp.IsSlotUsed(0), "seeded tuple survives")
	assert.False(t, hp.IsSlotUsed(1), "aborted insert is rolled back")
	require.NoError(t, env.store.TransactionComplete(t2, true))
}

func TestAbortReleasesLocks(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	tid := primitives.NewTransactionID()
	_, err := env.store.GetPage(tid, env.pid(0), primitives.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, env.store.TransactionComplete(tid, false))

	assert.False(t, env.store.HoldsLock(tid, env.pid(0)))

	t2 := primitives.NewTransactionID()
	_, err = env.store.GetPage(t2, env.pid(0), primitives.ReadWrite)
	require.NoError(t, err)
}

func TestMarkAbortedRefusesNewWork(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	tid := primitives.NewTransactionID()
	env.store.MarkAborted(tid)

	_, err := env.store.GetPage(tid, env.pid(0), primitives.ReadOnly)
	require.Error(t, err)
	var aborted *TransactionAbortedError
	assert.ErrorAs(t, err, &aborted)

	err = env.store.InsertTuple(tid, env.file.GetID(), env.makeTuple(t, 1, "x"))
	assert.ErrorAs(t, err, &aborted)
}

func TestMutationAfterUnsafeReleaseReacquiresLock(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	tid := primitives.NewTransactionID()
	p, err := env.store.GetPage(tid, env.pid(0), primitives.ReadWrite)
	require.NoError(t, err)
	tup, err := p.(*heap.HeapPage).GetTuple(0)
	require.NoError(t, err)

	// An early release is not final: the delete routes back through
	// GetPage, which re-acquires the exclusive lock.
	env.store.UnsafeReleasePage(tid, env.pid(0))
	require.False(t, env.store.HoldsLock(tid, env.pid(0)))

	require.NoError(t, env.store.DeleteTuple(tid, tup))
	assert.True(t, env.store.HoldsLock(tid, env.pid(0)))
	require.NoError(t, env.store.TransactionComplete(tid, true))
}

func TestMarkDirtyWithoutExclusiveLockDenied(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	tid := primitives.NewTransactionID()
	p, err := env.store.GetPage(tid, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)

	// A shared lock is not enough to record a mutation.
	err = env.store.markPagesDirty(tid, []page.Page{p})
	require.Error(t, err)
	var denied *PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestFailedCommitDoesNotExposeDirtyPage(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	tid := primitives.NewTransactionID()
	require.NoError(t, env.store.InsertTuple(tid, env.file.GetID(), env.makeTuple(t, 99, "phantom")))

	// Closing the file underneath the store makes the commit flush fail.
	require.NoError(t, env.file.Close())
	require.Error(t, env.store.TransactionComplete(tid, true))

	// The failed commit ends as an abort: its mutation is gone from the
	// cache and its locks are released.
	assert.Equal(t, 0, env.store.CachedPages())
	assert.False(t, env.store.HoldsLock(tid, env.pid(0)))

	// Reopen the table; a later reader sees the pre-transaction image.
	hf, err := heap.NewHeapFile(env.file.FilePath(), env.file.GetTupleDesc())
	require.NoError(t, err)
	t.Cleanup(func() { hf.Close() })
	require.NoError(t, env.cat.AddTable(hf, "test"))

	t2 := primitives.NewTransactionID()
	p, err := env.store.GetPage(t2, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)
	hp := p.(*heap.HeapPage)
	assert.True(t, hp.IsSlotUsed(0), "seeded tuple survives")
	assert.False(t, hp.IsSlotUsed(1), "the failed commit's tuple is not readable")
	require.NoError(t, env.store.TransactionComplete(t2, true))
}

func TestDiscardPageDropsCachedCopy(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	tid := primitives.NewTransactionID()
	_, err := env.store.GetPage(tid, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)
	require.Equal(t, 1, env.store.CachedPages())

	env.store.DiscardPage(env.pid(0))
	assert.Equal(t, 0, env.store.CachedPages())
}

func TestFlushPageCleansDirtyPage(t *testing.T) {
	env := newTestEnv(t, 10)
	tid := primitives.NewTransactionID()

	require.NoError(t, env.store.InsertTuple(tid, env.file.GetID(), env.makeTuple(t, 7, "flushme")))

	p, err := env.store.GetPage(tid, env.pid(0), primitives.ReadWrite)
	require.NoError(t, err)
	require.NotNil(t, p.IsDirty())

	require.NoError(t, env.store.FlushPage(env.pid(0)))
	assert.Nil(t, p.IsDirty())

	reread, err := env.file.ReadPage(env.pid(0))
	require.NoError(t, err)
	assert.True(t, reread.(*heap.HeapPage).IsSlotUsed(0))
	require.NoError(t, env.store.TransactionComplete(tid, true))
}

func TestFlushPageNoopForAbsentOrClean(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedPages(t, 1)

	require.NoError(t, env.store.FlushPage(env.pid(0)), "absent page")

	tid := primitives.NewTransactionID()
	_, err := env.store.GetPage(tid, env.pid(0), primitives.ReadOnly)
	require.NoError(t, err)
	require.NoError(t, env.store.FlushPage(env.pid(0)), "clean page")
}

func TestTransactionCompleteUnknownTidIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 10)
	tid := primitives.NewTransactionID()
	require.NoError(t, env.store.TransactionComplete(tid, true))
	require.NoError(t, env.store.TransactionComplete(tid, false))
}

func TestConcurrentInsertsAllSurviveCommit(t *testing.T) {
	env := newTestEnv(t, 20)
	const workers = 8
	const perWorker = 5

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			tid := primitives.NewTransactionID()
			for i := 0; i < perWorker; i++ {
				tup := env.makeTuple(t, int64(w*perWorker+i), "worker")
				if err := env.store.InsertTuple(tid, env.file.GetID(), tup); err != nil {
					env.store.TransactionComplete(tid, false)
					return err
				}
			}
			return env.store.TransactionComplete(tid, true)
		})
	}
	require.NoError(t, g.Wait())

	// Count survivors straight from disk.
	tid := primitives.NewTransactionID()
	it := env.file.Iterator(tid, env.store)
	require.NoError(t, it.Open())
	defer it.Close()

	count := 0
	for {
		hasNext, err := it.HasNext()
		require.NoError(t, err)
		if !hasNext {
			break
		}
		_, err = it.Next()
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, workers*perWorker, count)
	require.NoError(t, env.store.TransactionComplete(tid, true))
}
