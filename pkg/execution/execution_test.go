package execution

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minirel/pkg/catalog"
	"minirel/pkg/memory"
	"minirel/pkg/primitives"
	"minirel/pkg/storage/heap"
	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

type queryEnv struct {
	store *memory.PageStore
	cat   *catalog.Catalog
	file  *heap.HeapFile
}

func newQueryEnv(t *testing.T) *queryEnv {
	t.Helper()
	td, err := tuple.NewTupleDesc(
		[]types.Type{types.IntType, types.StringType},
		[]string{"id", "city"},
	)
	require.NoError(t, err)

	path := primitives.Filepath(filepath.Join(t.TempDir(), "people.dat"))
	hf, err := heap.NewHeapFile(path, td)
	require.NoError(t, err)
	t.Cleanup(func() { hf.Close() })

	cat := catalog.NewCatalog()
	require.NoError(t, cat.AddTable(hf, "people"))

	return &queryEnv{
		store: memory.NewPageStore(memory.Config{Capacity: 20}, cat, nil),
		cat:   cat,
		file:  hf,
	}
}

func (e *queryEnv) row(t *testing.T, id int64, city string) *tuple.Tuple {
	t.Helper()
	tup, err := tuple.NewTuple(e.file.GetTupleDesc())
	require.NoError(t, err)
	require.NoError(t, tup.SetField(0, types.NewIntField(id)))
	require.NoError(t, tup.SetField(1, types.NewStringField(city)))
	return tup
}

// seed commits rows into the table so later scans see them.
func (e *queryEnv) seed(t *testing.T, rows ...*tuple.Tuple) {
	t.Helper()
	tid := primitives.NewTransactionID()
	for _, r := range rows {
		require.NoError(t, e.store.InsertTuple(tid, e.file.GetID(), r))
	}
	require.NoError(t, e.store.TransactionComplete(tid, true))
}

func drain(t *testing.T, it DbIterator) []*tuple.Tuple {
	t.Helper()
	var out []*tuple.Tuple
	for {
		hasNext, err := it.HasNext()
		require.NoError(t, err)
		if !hasNext {
			return out
		}
		tup, err := it.Next()
		require.NoError(t, err)
		out = append(out, tup)
	}
}

func intAt(t *testing.T, tup *tuple.Tuple, i int) int64 {
	t.Helper()
	f, err := tup.GetField(i)
	require.NoError(t, err)
	intField, ok := f.(*types.IntField)
	require.True(t, ok)
	return intField.Value
}

func TestSeqScanReadsAllRows(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t, env.row(t, 1, "oslo"), env.row(t, 2, "lima"), env.row(t, 3, "oslo"))

	tid := primitives.NewTransactionID()
	scan, err := NewSeqScan(tid, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	defer scan.Close()

	rows := drain(t, scan)
	assert.Len(t, rows, 3)
	assert.True(t, scan.GetTupleDesc().Equals(env.file.GetTupleDesc()))

	require.NoError(t, scan.Rewind())
	assert.Len(t, drain(t, scan), 3)
	require.NoError(t, env.store.TransactionComplete(tid, true))
}

func TestFilterSelectsMatchingRows(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t, env.row(t, 1, "oslo"), env.row(t, 5, "lima"), env.row(t, 9, "pune"))

	tid := primitives.NewTransactionID()
	scan, err := NewSeqScan(tid, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)

	filter, err := NewFilter(NewPredicate(0, primitives.GreaterThan, types.NewIntField(4)), scan)
	require.NoError(t, err)
	require.NoError(t, filter.Open())
	defer filter.Close()

	rows := drain(t, filter)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Greater(t, intAt(t, r, 0), int64(4))
	}
	require.NoError(t, env.store.TransactionComplete(tid, true))
}

func TestJoinMatchesOnEquality(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t, env.row(t, 1, "oslo"), env.row(t, 2, "lima"))

	left := newTupleListIteratorForTest(t, []int64{1, 2, 3})

	tid := primitives.NewTransactionID()
	right, err := NewSeqScan(tid, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)

	join, err := NewJoin(NewJoinPredicate(0, primitives.Equals, 0), left, right)
	require.NoError(t, err)
	require.NoError(t, join.Open())
	defer join.Close()

	rows := drain(t, join)
	require.Len(t, rows, 2, "ids 1 and 2 match, 3 does not")
	assert.Equal(t, 3, join.GetTupleDesc().NumFields())
	for _, r := range rows {
		assert.Equal(t, intAt(t, r, 0), intAt(t, r, 1))
	}
	require.NoError(t, env.store.TransactionComplete(tid, true))
}

func newTupleListIteratorForTest(t *testing.T, ids []int64) DbIterator {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"id"})
	require.NoError(t, err)

	tuples := make([]*tuple.Tuple, 0, len(ids))
	for _, id := range ids {
		tup, err := tuple.NewTuple(td)
		require.NoError(t, err)
		require.NoError(t, tup.SetField(0, types.NewIntField(id)))
		tuples = append(tuples, tup)
	}
	return newTupleListIterator(td, tuples)
}

func TestOperatorRejectsUseBeforeOpen(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t, env.row(t, 1, "oslo"))

	tid := primitives.NewTransactionID()
	scan, err := NewSeqScan(tid, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)

	_, err = scan.HasNext()
	assert.Error(t, err, "HasNext before Open")
	_, err = scan.Next()
	assert.Error(t, err, "Next before Open")

	filter, err := NewFilter(NewPredicate(0, primitives.Equals, types.NewIntField(1)), scan)
	require.NoError(t, err)
	_, err = filter.HasNext()
	assert.Error(t, err)
	_, err = filter.Next()
	assert.Error(t, err)

	// Opening clears the rejection; closing restores it.
	require.NoError(t, filter.Open())
	rows := drain(t, filter)
	assert.Len(t, rows, 1)
	require.NoError(t, filter.Close())
	_, err = filter.HasNext()
	assert.Error(t, err, "HasNext after Close")
	require.NoError(t, env.store.TransactionComplete(tid, true))
}

func TestIntAggregatesWithoutGrouping(t *testing.T) {
	tests := []struct {
		op   AggregateOp
		want int64
	}{
		{CountAgg, 4},
		{SumAgg, 20},
		{AvgAgg, 5},
		{MinAgg, 2},
		{MaxAgg, 8},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			child := newTupleListIteratorForTest(t, []int64{2, 4, 6, 8})
			agg, err := NewAggregate(child, 0, NoGrouping, tt.op)
			require.NoError(t, err)
			require.NoError(t, agg.Open())
			defer agg.Close()

			rows := drain(t, agg)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, intAt(t, rows[0], 0))
		})
	}
}

func TestGroupedCount(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t,
		env.row(t, 1, "oslo"),
		env.row(t, 2, "lima"),
		env.row(t, 3, "oslo"),
		env.row(t, 4, "oslo"),
	)

	tid := primitives.NewTransactionID()
	scan, err := NewSeqScan(tid, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)

	// COUNT(id) GROUP BY city.
	agg, err := NewAggregate(scan, 0, 1, CountAgg)
	require.NoError(t, err)
	require.NoError(t, agg.Open())
	defer agg.Close()

	counts := make(map[string]int64)
	for _, r := range drain(t, agg) {
		group, err := r.GetField(0)
		require.NoError(t, err)
		counts[group.String()] = intAt(t, r, 1)
	}
	assert.Equal(t, map[string]int64{"oslo": 3, "lima": 1}, counts)
	require.NoError(t, env.store.TransactionComplete(tid, true))
}

func TestStringAggregatorOnlyCounts(t *testing.T) {
	_, err := NewStringAggregator(NoGrouping, types.IntType, 0, SumAgg)
	assert.Error(t, err)

	agg, err := NewStringAggregator(NoGrouping, types.IntType, 1, CountAgg)
	require.NoError(t, err)

	td, err := tuple.NewTupleDesc([]types.Type{types.IntType, types.StringType}, []string{"id", "city"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		tup, err := tuple.NewTuple(td)
		require.NoError(t, err)
		require.NoError(t, tup.SetField(0, types.NewIntField(int64(i))))
		require.NoError(t, tup.SetField(1, types.NewStringField("x")))
		require.NoError(t, agg.Merge(tup))
	}

	it, err := agg.Iterator()
	require.NoError(t, err)
	require.NoError(t, it.Open())
	rows := drain(t, it)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), intAt(t, rows[0], 0))
}

func TestInsertOperatorEmitsCountOnce(t *testing.T) {
	env := newQueryEnv(t)

	td := env.file.GetTupleDesc()
	source := newTupleListIterator(td, []*tuple.Tuple{
		env.row(t, 1, "oslo"),
		env.row(t, 2, "lima"),
	})

	tid := primitives.NewTransactionID()
	ins, err := NewInsert(tid, source, env.file.GetID(), env.store)
	require.NoError(t, err)
	require.NoError(t, ins.Open())
	defer ins.Close()

	rows := drain(t, ins)
	require.Len(t, rows, 1, "exactly one count tuple per open")
	assert.Equal(t, int64(2), intAt(t, rows[0], 0))
	require.NoError(t, env.store.TransactionComplete(tid, true))

	// The rows are really in the table.
	tid2 := primitives.NewTransactionID()
	scan, err := NewSeqScan(tid2, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	defer scan.Close()
	assert.Len(t, drain(t, scan), 2)
	require.NoError(t, env.store.TransactionComplete(tid2, true))
}

func TestDeleteOperatorRemovesFilteredRows(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t, env.row(t, 1, "oslo"), env.row(t, 2, "lima"), env.row(t, 3, "oslo"))

	tid := primitives.NewTransactionID()
	scan, err := NewSeqScan(tid, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)
	filter, err := NewFilter(NewPredicate(1, primitives.Equals, types.NewStringField("oslo")), scan)
	require.NoError(t, err)

	del, err := NewDelete(tid, filter, env.store)
	require.NoError(t, err)
	require.NoError(t, del.Open())
	defer del.Close()

	rows := drain(t, del)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), intAt(t, rows[0], 0))
	require.NoError(t, env.store.TransactionComplete(tid, true))

	tid2 := primitives.NewTransactionID()
	scan2, err := NewSeqScan(tid2, env.file.GetID(), env.store, env.cat)
	require.NoError(t, err)
	require.NoError(t, scan2.Open())
	defer scan2.Close()

	remaining := drain(t, scan2)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(2), intAt(t, remaining[0], 0))
	require.NoError(t, env.store.TransactionComplete(tid2, true))
}
