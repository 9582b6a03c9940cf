package page

import "minirel/pkg/primitives"

// PageSize is the fixed size in bytes of every page, on disk and in
// memory. All file offsets are multiples of PageSize.
const PageSize = 4096

// Page is one fixed-size unit of data cached by the buffer pool.
// Implementations track which transaction, if any, last dirtied them
// and keep a before-image for rollback bookkeeping.
type Page interface {
	// GetID returns the page's identity.
	GetID() primitives.PageID

	// IsDirty returns the transaction that last dirtied the page, or
	// nil if the page matches its on-disk image.
	IsDirty() *primitives.TransactionID

	// MarkDirty sets or clears the page's dirty state. Passing a nil
	// tid clears it, typically after a flush.
	MarkDirty(dirty bool, tid *primitives.TransactionID)

	// GetPageData returns the page's full PageSize-byte serialized form.
	GetPageData() []byte

	// GetBeforeImage returns a snapshot of the page as of the last
	// SetBeforeImage call.
	GetBeforeImage() Page

	// SetBeforeImage snapshots the current contents as the new
	// before-image.
	SetBeforeImage()
}
