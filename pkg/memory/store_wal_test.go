package memory

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minirel/pkg/catalog"
	"minirel/pkg/log"
	"minirel/pkg/primitives"
	"minirel/pkg/storage/heap"
	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

func newWALEnv(t *testing.T) (*PageStore, *heap.HeapFile, *log.WAL, primitives.Filepath) {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"v"})
	require.NoError(t, err)

	dir := t.TempDir()
	hf, err := heap.NewHeapFile(primitives.Filepath(filepath.Join(dir, "table.dat")), td)
	require.NoError(t, err)
	t.Cleanup(func() { hf.Close() })

	cat := catalog.NewCatalog()
	require.NoError(t, cat.AddTable(hf, "test"))

	walPath := primitives.Filepath(filepath.Join(dir, "wal.log"))
	wal, err := log.NewWAL(walPath)
	require.NoError(t, err)
	t.Cleanup(func() { wal.Close() })

	return NewPageStore(Config{Capacity: 10}, cat, wal), hf, wal, walPath
}

func walRecords(t *testing.T, path primitives.Filepath) []*log.Record {
	t.Helper()
	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	var records []*log.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestCommitLogsBeginWriteCommitInOrder(t *testing.T) {
	store, hf, _, walPath := newWALEnv(t)
	tid := primitives.NewTransactionID()

	tup, err := tuple.NewTuple(hf.GetTupleDesc())
	require.NoError(t, err)
	require.NoError(t, tup.SetField(0, types.NewIntField(1)))

	require.NoError(t, store.InsertTuple(tid, hf.GetID(), tup))
	require.NoError(t, store.TransactionComplete(tid, true))

	records := walRecords(t, walPath)
	require.Len(t, records, 3)
	assert.Equal(t, log.RecordBegin, records[0].Type)
	assert.Equal(t, log.RecordWrite, records[1].Type)
	assert.Equal(t, log.RecordCommit, records[2].Type)
	for _, rec := range records {
		assert.Equal(t, tid.ID(), rec.TID)
	}

	// The logged after-image is the page that went to disk.
	pid := primitives.NewPageID(hf.GetID(), 0)
	assert.Equal(t, pid, records[1].PID)
	onDisk, err := hf.ReadPage(pid)
	require.NoError(t, err)
	assert.Equal(t, onDisk.GetPageData(), records[1].Data)
}

func TestAbortLogsAbortAndNoWrite(t *testing.T) {
	store, hf, wal, walPath := newWALEnv(t)
	tid := primitives.NewTransactionID()

	tup, err := tuple.NewTuple(hf.GetTupleDesc())
	require.NoError(t, err)
	require.NoError(t, tup.SetField(0, types.NewIntField(1)))

	require.NoError(t, store.InsertTuple(tid, hf.GetID(), tup))
	require.NoError(t, store.TransactionComplete(tid, false))
	require.NoError(t, wal.Force())

	var sawWrite bool
	records := walRecords(t, walPath)
	require.NotEmpty(t, records)
	for _, rec := range records {
		if rec.Type == log.RecordWrite {
			sawWrite = true
		}
	}
	assert.False(t, sawWrite, "aborted pages never reach the log's write records")
	assert.Equal(t, log.RecordAbort, records[len(records)-1].Type)
}
