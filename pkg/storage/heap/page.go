package heap

import (
	"bytes"
	"io"
	"sync"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
	"minirel/pkg/tuple"
)

// HeapPage is one fixed-size page of a heap file: an occupancy bitmap
// header followed by an array of fixed-width tuple slots. Bit i of the
// header is set iff slot i holds a live tuple; slot bytes are defined
// only while the bit is set.
//
// Slot capacity follows from the one-bit-per-slot header overhead:
// each slot costs its tuple width in bits plus one header bit, so
// capacity = floor(8*PageSize / (8*tupleWidth + 1)), and the header
// occupies ceil(capacity/8) bytes. Any space after the last slot is
// padding and encodes as zeros.
type HeapPage struct {
	pid      primitives.PageID
	td       *tuple.TupleDescription
	numSlots int
	header   []byte
	tuples   []*tuple.Tuple

	dirty   bool
	dirtier *primitives.TransactionID
	oldData []byte

	mutex sync.RWMutex
}

// SlotsPerPage returns how many tuples of width tupleSize fit on one
// page alongside their header bits.
func SlotsPerPage(tupleSize uint32) int {
	return (page.PageSize * 8) / (int(tupleSize)*8 + 1)
}

// HeaderSize returns the bitmap byte count for the given slot capacity.
func HeaderSize(numSlots int) int {
	return (numSlots + 7) / 8
}

// NewHeapPage decodes a PageSize-byte block into a page with schema td.
// It fails with CorruptPageError if the block has the wrong length, the
// header's padding bits are set, or an occupied slot's bytes do not
// decode as a tuple.
func NewHeapPage(pid primitives.PageID, data []byte, td *tuple.TupleDescription) (*HeapPage, error) {
	if td == nil {
		return nil, errors.New("schema cannot be nil")
	}
	if len(data) != page.PageSize {
		return nil, &page.CorruptPageError{
			PID:    pid,
			Reason: errors.Errorf("block is %d bytes, want %d", len(data), page.PageSize).Error(),
		}
	}

	hp := newBlankPage(pid, td)
	if err := hp.parsePageData(data); err != nil {
		return nil, err
	}
	hp.SetBeforeImage()
	return hp, nil
}

// NewEmptyHeapPage creates an all-empty page, used when a heap file
// grows by one page.
func NewEmptyHeapPage(pid primitives.PageID, td *tuple.TupleDescription) (*HeapPage, error) {
	if td == nil {
		return nil, errors.New("schema cannot be nil")
	}
	hp := newBlankPage(pid, td)
	hp.SetBeforeImage()
	return hp, nil
}

func newBlankPage(pid primitives.PageID, td *tuple.TupleDescription) *HeapPage {
	numSlots := SlotsPerPage(td.Size())
	return &HeapPage{
		pid:      pid,
		td:       td,
		numSlots: numSlots,
		header:   make([]byte, HeaderSize(numSlots)),
		tuples:   make([]*tuple.Tuple, numSlots),
	}
}

func (hp *HeapPage) parsePageData(data []byte) error {
	r := bytes.NewReader(data)

	header := make([]byte, len(hp.header))
	if _, err := r.Read(header); err != nil {
		return &page.CorruptPageError{PID: hp.pid, Reason: "short header"}
	}

	// Bits past the last slot in the final header byte must be clear;
	// set padding bits mean the bitmap and slot count disagree.
	if trailing := hp.numSlots % 8; trailing != 0 {
		mask := byte(0xFF) << trailing
		if header[len(header)-1]&mask != 0 {
			return &page.CorruptPageError{PID: hp.pid, Reason: "padding bits set in occupancy bitmap"}
		}
	}
	hp.header = header

	slotWidth := int64(hp.td.Size())
	for i := 0; i < hp.numSlots; i++ {
		if !hp.isSlotUsedLocked(i) {
			if _, err := r.Seek(slotWidth, io.SeekCurrent); err != nil {
				return &page.CorruptPageError{PID: hp.pid, Reason: "slot array truncated"}
			}
			continue
		}
		t, err := tuple.Parse(r, hp.td)
		if err != nil {
			return &page.CorruptPageError{
				PID:    hp.pid,
				Reason: errors.Wrapf(err, "slot %d", i).Error(),
			}
		}
		t.RecordID = tuple.NewRecordID(hp.pid, primitives.SlotID(i))
		hp.tuples[i] = t
	}
	return nil
}

// GetID returns the page's identity.
func (hp *HeapPage) GetID() primitives.PageID {
	return hp.pid
}

// GetNumSlots returns the page's fixed slot capacity.
func (hp *HeapPage) GetNumSlots() int {
	return hp.numSlots
}

// GetTupleDesc returns the schema of tuples on this page.
func (hp *HeapPage) GetTupleDesc() *tuple.TupleDescription {
	return hp.td
}

// IsSlotUsed reports whether slot i currently holds a tuple.
func (hp *HeapPage) IsSlotUsed(i primitives.SlotID) bool {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.isSlotUsedLocked(int(i))
}

func (hp *HeapPage) isSlotUsedLocked(i int) bool {
	if i < 0 || i >= hp.numSlots {
		return false
	}
	return hp.header[i/8]&(1<<(i%8)) != 0
}

func (hp *HeapPage) setSlotLocked(i int, used bool) {
	if used {
		hp.header[i/8] |= 1 << (i % 8)
	} else {
		hp.header[i/8] &^= 1 << (i % 8)
	}
}

// GetNumEmptySlots returns how many slots are currently free.
func (hp *HeapPage) GetNumEmptySlots() int {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	empty := 0
	for i := 0; i < hp.numSlots; i++ {
		if !hp.isSlotUsedLocked(i) {
			empty++
		}
	}
	return empty
}

// AddTuple places t in the first free slot, sets its occupancy bit, and
// stamps t's RecordID with this page and slot. The tuple's schema must
// match the page's.
func (hp *HeapPage) AddTuple(t *tuple.Tuple) error {
	if t == nil {
		return errors.New("tuple cannot be nil")
	}
	if !hp.td.Equals(t.TupleDesc) {
		return errors.New("tuple schema does not match page schema")
	}

	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	for i := 0; i < hp.numSlots; i++ {
		if hp.isSlotUsedLocked(i) {
			continue
		}
		hp.setSlotLocked(i, true)
		t.RecordID = tuple.NewRecordID(hp.pid, primitives.SlotID(i))
		hp.tuples[i] = t
		return nil
	}
	return errors.Errorf("page %v is full", hp.pid)
}

// DeleteTuple clears the slot named by t's RecordID. It fails with
// TupleNotFoundError if the tuple has no RecordID, points at a
// different page, or its slot is already empty.
func (hp *HeapPage) DeleteTuple(t *tuple.Tuple) error {
	if t == nil {
		return errors.New("tuple cannot be nil")
	}
	if t.RecordID == nil {
		return &page.TupleNotFoundError{PID: hp.pid, Reason: "tuple has no record id"}
	}
	if !t.RecordID.PID.Equals(hp.pid) {
		return &page.TupleNotFoundError{
			PID:    t.RecordID.PID,
			Slot:   t.RecordID.Slot,
			Reason: "tuple belongs to a different page",
		}
	}

	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	slot := int(t.RecordID.Slot)
	if slot < 0 || slot >= hp.numSlots {
		return &page.TupleNotFoundError{PID: hp.pid, Slot: t.RecordID.Slot, Reason: "slot out of range"}
	}
	if !hp.isSlotUsedLocked(slot) {
		return &page.TupleNotFoundError{PID: hp.pid, Slot: t.RecordID.Slot, Reason: "slot is empty"}
	}

	hp.setSlotLocked(slot, false)
	hp.tuples[slot] = nil
	t.RecordID = nil
	return nil
}

// GetTuple returns the tuple in slot i, or TupleNotFoundError if the
// slot is empty or out of range.
func (hp *HeapPage) GetTuple(i primitives.SlotID) (*tuple.Tuple, error) {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	slot := int(i)
	if slot < 0 || slot >= hp.numSlots || !hp.isSlotUsedLocked(slot) {
		return nil, &page.TupleNotFoundError{PID: hp.pid, Slot: i, Reason: "slot is empty or out of range"}
	}
	return hp.tuples[slot], nil
}

// GetPageData serializes the page to exactly PageSize bytes: header,
// then every slot in order (zeros for empty slots), then zero padding.
func (hp *HeapPage) GetPageData() []byte {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.encodeLocked()
}

func (hp *HeapPage) encodeLocked() []byte {
	var buf bytes.Buffer
	buf.Grow(page.PageSize)
	buf.Write(hp.header)

	emptySlot := make([]byte, hp.td.Size())
	for i := 0; i < hp.numSlots; i++ {
		if !hp.isSlotUsedLocked(i) {
			buf.Write(emptySlot)
			continue
		}
		// Slots are fixed width and set fields are validated at
		// SetField time, so serialization cannot fail here.
		if err := hp.tuples[i].Serialize(&buf); err != nil {
			buf.Write(emptySlot)
		}
	}

	data := buf.Bytes()
	padded := make([]byte, page.PageSize)
	copy(padded, data)
	return padded
}

// IsDirty returns the transaction that dirtied the page, or nil.
func (hp *HeapPage) IsDirty() *primitives.TransactionID {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	if !hp.dirty {
		return nil
	}
	return hp.dirtier
}

// MarkDirty sets or clears the dirty flag and the owning transaction.
func (hp *HeapPage) MarkDirty(dirty bool, tid *primitives.TransactionID) {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()
	hp.dirty = dirty
	if dirty {
		hp.dirtier = tid
	} else {
		hp.dirtier = nil
	}
}

// GetBeforeImage returns a page rebuilt from the last snapshot taken
// with SetBeforeImage.
func (hp *HeapPage) GetBeforeImage() page.Page {
	hp.mutex.RLock()
	old := make([]byte, len(hp.oldData))
	copy(old, hp.oldData)
	hp.mutex.RUnlock()

	before, err := NewHeapPage(hp.pid, old, hp.td)
	if err != nil {
		return nil
	}
	return before
}

// SetBeforeImage snapshots the current contents as the rollback image.
func (hp *HeapPage) SetBeforeImage() {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()
	hp.oldData = hp.encodeLocked()
}
