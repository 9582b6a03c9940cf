package log

import (
	"bufio"
	"os"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// Reader iterates a write-ahead log file from the beginning, record by
// record. It is used by recovery tooling and tests; it does not share
// state with a live WAL writer.
type Reader struct {
	file *os.File
	buf  *bufio.Reader
}

// NewReader opens the log file at path for sequential reading.
func NewReader(path primitives.Filepath) (*Reader, error) {
	file, err := os.Open(string(path))
	if err != nil {
		return nil, errors.Wrapf(err, "open log %s", path)
	}
	return &Reader{file: file, buf: bufio.NewReader(file)}, nil
}

// Next returns the next record, or io.EOF at the end of the log.
func (r *Reader) Next() (*Record, error) {
	return readRecord(r.buf)
}

// Close releases the file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
