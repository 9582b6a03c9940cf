package page

import (
	"fmt"

	"minirel/pkg/primitives"
)

// CorruptPageError reports a page whose serialized form cannot be
// decoded: wrong length, inconsistent header, or undecodable record
// bytes.
type CorruptPageError struct {
	PID    primitives.PageID
	Reason string
}

func (e *CorruptPageError) Error() string {
	return fmt.Sprintf("corrupt page %v: %s", e.PID, e.Reason)
}

// PageNotFoundError reports a read of a page number at or past the end
// of the file.
type PageNotFoundError struct {
	PID primitives.PageID
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page %v does not exist", e.PID)
}

// TupleNotFoundError reports a tuple-level operation aimed at a slot
// that is empty, out of range, or on the wrong page.
type TupleNotFoundError struct {
	PID    primitives.PageID
	Slot   primitives.SlotID
	Reason string
}

func (e *TupleNotFoundError) Error() string {
	return fmt.Sprintf("tuple at %v slot %d not found: %s", e.PID, e.Slot, e.Reason)
}
