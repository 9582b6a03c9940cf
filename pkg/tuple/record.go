package tuple

import (
	"fmt"

	"minirel/pkg/primitives"
)

// RecordID locates one tuple: the page it lives on plus its slot index.
// It is assigned when a tuple is written to a page and cleared when the
// tuple is deleted.
type RecordID struct {
	PID  primitives.PageID
	Slot primitives.SlotID
}

// NewRecordID creates a RecordID for the given page and slot.
func NewRecordID(pid primitives.PageID, slot primitives.SlotID) *RecordID {
	return &RecordID{PID: pid, Slot: slot}
}

// Equals reports whether two RecordIDs name the same slot.
func (r *RecordID) Equals(other *RecordID) bool {
	if other == nil {
		return false
	}
	return r.PID.Equals(other.PID) && r.Slot == other.Slot
}

func (r *RecordID) String() string {
	return fmt.Sprintf("RecordID(%v, slot=%d)", r.PID, r.Slot)
}
