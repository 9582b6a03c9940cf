package primitives

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
)

// TableID uniquely identifies one table (and therefore one heap file)
// within a running engine. It is derived from the absolute path of the
// backing file, so re-opening the same file yields the same ID.
type TableID uint64

// IsValid reports whether the TableID is a usable non-zero identifier.
func (t TableID) IsValid() bool {
	return t != 0
}

func (t TableID) String() string {
	return fmt.Sprintf("TableID(%d)", t)
}

// PageNumber is the zero-based index of a page within a heap file.
type PageNumber int

// SlotID is the zero-based index of a tuple slot within a page.
type SlotID int

// HashCode is the common hash representation used by fields and IDs.
type HashCode uint32

// Filepath is the path of an on-disk database file.
type Filepath string

// Hash derives the stable TableID for the file at this path.
// The path is made absolute first so relative spellings agree.
func (f Filepath) Hash() TableID {
	abs, err := filepath.Abs(string(f))
	if err != nil {
		abs = string(f)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(abs))
	id := TableID(h.Sum64())
	if id == 0 {
		id = 1
	}
	return id
}
