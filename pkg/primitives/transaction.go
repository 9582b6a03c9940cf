package primitives

import (
	"fmt"
	"sync/atomic"
)

var transactionCounter int64

// TransactionID is an opaque, process-wide-unique token identifying one
// logical unit of work. Callers compare them by pointer identity; the
// numeric value exists only for log records and diagnostics.
type TransactionID struct {
	id int64
}

// NewTransactionID mints a fresh transaction identifier.
func NewTransactionID() *TransactionID {
	return &TransactionID{
		id: atomic.AddInt64(&transactionCounter, 1),
	}
}

// NewTransactionIDFromValue rebuilds a TransactionID with a specific
// numeric value. Used when deserializing log records.
func NewTransactionIDFromValue(id int64) *TransactionID {
	return &TransactionID{id: id}
}

func (tid *TransactionID) ID() int64 {
	return tid.id
}

func (tid *TransactionID) String() string {
	return fmt.Sprintf("TID-%d", tid.id)
}

func (tid *TransactionID) Equals(other *TransactionID) bool {
	if tid == nil || other == nil {
		return tid == other
	}
	return tid.id == other.id
}
