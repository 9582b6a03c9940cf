package log

import (
	"bufio"
	"os"
	"sync"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
)

// WAL is an append-only write-ahead log. Records accumulate in a
// buffer and reach disk on Force, which the buffer pool calls before
// any page write and which commit records trigger implicitly, so the
// log always leads the data files.
type WAL struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	nextLSN LSN
}

// NewWAL opens (creating if absent) the log file at path, appending to
// any existing records.
func NewWAL(path primitives.Filepath) (*WAL, error) {
	if path == "" {
		return nil, errors.New("log path cannot be empty")
	}
	file, err := os.OpenFile(string(path), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log %s", path)
	}
	return &WAL{
		file:    file,
		buf:     bufio.NewWriter(file),
		nextLSN: 1,
	}, nil
}

func (w *WAL) appendLocked(rec *Record) (LSN, error) {
	if w.file == nil {
		return 0, errors.New("log is closed")
	}
	rec.LSN = w.nextLSN
	frame, err := rec.serialize()
	if err != nil {
		return 0, errors.Wrap(err, "serialize log record")
	}
	if _, err := w.buf.Write(frame); err != nil {
		return 0, errors.Wrap(err, "append log record")
	}
	w.nextLSN++
	return rec.LSN, nil
}

// LogBegin records the start of a transaction.
func (w *WAL) LogBegin(tid *primitives.TransactionID) (LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(&Record{Type: RecordBegin, TID: tid.ID()})
}

// LogWrite records a page's after-image on behalf of the transaction
// that dirtied it. The buffer pool calls this immediately before the
// physical page write in a flush.
func (w *WAL) LogWrite(tid *primitives.TransactionID, p page.Page) (LSN, error) {
	if p == nil {
		return 0, errors.New("page cannot be nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var tidVal int64
	if tid != nil {
		tidVal = tid.ID()
	}
	return w.appendLocked(&Record{
		Type: RecordWrite,
		TID:  tidVal,
		PID:  p.GetID(),
		Data: p.GetPageData(),
	})
}

// LogCommit records a commit and forces the log to disk before
// returning, so the commit record is durable ahead of the caller's
// acknowledgement.
func (w *WAL) LogCommit(tid *primitives.TransactionID) (LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	lsn, err := w.appendLocked(&Record{Type: RecordCommit, TID: tid.ID()})
	if err != nil {
		return 0, err
	}
	return lsn, w.forceLocked()
}

// LogAbort records an abort.
func (w *WAL) LogAbort(tid *primitives.TransactionID) (LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(&Record{Type: RecordAbort, TID: tid.ID()})
}

// Force flushes buffered records and syncs the log file.
func (w *WAL) Force() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.forceLocked()
}

func (w *WAL) forceLocked() error {
	if w.file == nil {
		return errors.New("log is closed")
	}
	if err := w.buf.Flush(); err != nil {
		return errors.Wrap(err, "flush log buffer")
	}
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(err, "sync log file")
	}
	return nil
}

// Close forces outstanding records and releases the file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	flushErr := w.forceLocked()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
