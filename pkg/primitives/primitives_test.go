package primitives

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageIDOrderingAndEquality(t *testing.T) {
	a := NewPageID(1, 0)
	b := NewPageID(1, 0)
	c := NewPageID(1, 1)
	d := NewPageID(2, 0)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))

	assert.True(t, a.Less(c), "same table orders by page number")
	assert.True(t, c.Less(d), "table id dominates the order")
	assert.False(t, d.Less(c))
}

func TestPageIDUsableAsMapKey(t *testing.T) {
	m := map[PageID]int{}
	m[NewPageID(1, 0)] = 1
	m[NewPageID(1, 0)] = 2
	m[NewPageID(1, 1)] = 3
	assert.Len(t, m, 2)
	assert.Equal(t, 2, m[NewPageID(1, 0)])
}

func TestTransactionIDsUnique(t *testing.T) {
	seen := map[int64]struct{}{}
	for i := 0; i < 100; i++ {
		tid := NewTransactionID()
		_, dup := seen[tid.ID()]
		require.False(t, dup)
		seen[tid.ID()] = struct{}{}
	}
}

func TestTransactionIDEquals(t *testing.T) {
	a := NewTransactionID()
	b := NewTransactionIDFromValue(a.ID())
	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(NewTransactionID()))
	assert.False(t, a.Equals(nil))
}

func TestFilepathHashStable(t *testing.T) {
	p := Filepath(filepath.Join("some", "dir", "table.dat"))
	assert.Equal(t, p.Hash(), p.Hash())
	assert.True(t, p.Hash().IsValid())

	other := Filepath(filepath.Join("some", "dir", "other.dat"))
	assert.NotEqual(t, p.Hash(), other.Hash())
}
