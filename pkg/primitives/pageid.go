package primitives

import "fmt"

// PageID identifies one fixed-size page: the table (heap file) it belongs
// to plus its page number within that file. It is a small immutable value
// type, usable directly as a map key, and totally ordered by
// (table, page number). A PageID is never reused for a different page
// within a file's lifetime.
type PageID struct {
	Table TableID
	Page  PageNumber
}

// NewPageID creates a PageID for the given table and page number.
func NewPageID(table TableID, page PageNumber) PageID {
	return PageID{Table: table, Page: page}
}

// Equals reports whether two PageIDs identify the same page.
func (p PageID) Equals(other PageID) bool {
	return p == other
}

// Less imposes the total order (table id, page number).
func (p PageID) Less(other PageID) bool {
	if p.Table != other.Table {
		return p.Table < other.Table
	}
	return p.Page < other.Page
}

func (p PageID) String() string {
	return fmt.Sprintf("PageID(table=%d, page=%d)", p.Table, p.Page)
}

// Hash returns a HashCode mixing table and page number.
func (p PageID) Hash() HashCode {
	return HashCode(uint32(p.Table)*31 + uint32(p.Page))
}
