package page

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// BaseFile handles raw page I/O for one on-disk file. It owns the OS
// file handle, computes page counts from the file size, and hands out
// or accepts whole PageSize-byte buffers. Concrete file types embed it
// and layer their page format on top.
//
// Thread-safety: all methods synchronize on an internal read/write
// mutex, so a BaseFile may be shared across goroutines.
type BaseFile struct {
	file     *os.File
	tableID  primitives.TableID
	filePath primitives.Filepath
	mutex    sync.RWMutex
}

// NewBaseFile opens (creating if absent) the file at filePath. The
// table identity is derived from a hash of the absolute path, so the
// same path always maps to the same TableID.
func NewBaseFile(filePath primitives.Filepath) (*BaseFile, error) {
	if filePath == "" {
		return nil, errors.New("file path cannot be empty")
	}

	file, err := os.OpenFile(string(filePath), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filePath)
	}

	return &BaseFile{
		file:     file,
		tableID:  filePath.Hash(),
		filePath: filePath,
	}, nil
}

// GetID returns the table identity derived from the file path.
func (bf *BaseFile) GetID() primitives.TableID {
	return bf.tableID
}

// FilePath returns the path this file was opened with.
func (bf *BaseFile) FilePath() primitives.Filepath {
	return bf.filePath
}

// NumPages returns the page count, rounding a trailing partial page up
// so every stored byte belongs to some page.
func (bf *BaseFile) NumPages() (primitives.PageNumber, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return 0, errors.New("file is closed")
	}

	info, err := bf.file.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat file")
	}

	numPages := primitives.PageNumber(info.Size() / int64(PageSize))
	if info.Size()%int64(PageSize) != 0 {
		numPages++
	}
	return numPages, nil
}

// ReadPageData reads the raw PageSize bytes of page pageNo. Reading a
// page number at or beyond the end of the file returns
// PageNotFoundError; a trailing partial page, which NumPages counts,
// returns CorruptPageError.
func (bf *BaseFile) ReadPageData(pageNo primitives.PageNumber) ([]byte, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return nil, errors.New("file is closed")
	}

	info, err := bf.file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat file")
	}
	offset := int64(pageNo) * int64(PageSize)
	if pageNo < 0 || offset >= info.Size() {
		return nil, &PageNotFoundError{PID: primitives.NewPageID(bf.tableID, pageNo)}
	}

	pageData := make([]byte, PageSize)
	n, err := bf.file.ReadAt(pageData, offset)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &CorruptPageError{
				PID:    primitives.NewPageID(bf.tableID, pageNo),
				Reason: fmt.Sprintf("page truncated: %d of %d bytes on disk", n, PageSize),
			}
		}
		return nil, errors.Wrapf(err, "read page %d", pageNo)
	}
	return pageData, nil
}

// WritePageData writes the raw bytes of page pageNo and syncs the file,
// so a successful return means the page is durable.
func (bf *BaseFile) WritePageData(pageNo primitives.PageNumber, pageData []byte) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return errors.New("file is closed")
	}
	if len(pageData) != PageSize {
		return errors.Errorf("invalid page data size: expected %d, got %d", PageSize, len(pageData))
	}

	offset := int64(pageNo) * int64(PageSize)
	if _, err := bf.file.WriteAt(pageData, offset); err != nil {
		return errors.Wrapf(err, "write page %d", pageNo)
	}
	if err := bf.file.Sync(); err != nil {
		return errors.Wrap(err, "sync file")
	}
	return nil
}

// AllocateNewPage atomically reserves the next page number by extending
// the file with a zero-filled page. Concurrent callers each get a
// distinct page number; the caller then overwrites the zeros with real
// contents via WritePageData.
func (bf *BaseFile) AllocateNewPage() (primitives.PageNumber, error) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return 0, errors.New("file is closed")
	}

	info, err := bf.file.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat file")
	}

	numPages := primitives.PageNumber(info.Size() / int64(PageSize))
	if info.Size()%int64(PageSize) != 0 {
		numPages++
	}

	zeroPage := make([]byte, PageSize)
	offset := int64(numPages) * int64(PageSize)
	if _, err := bf.file.WriteAt(zeroPage, offset); err != nil {
		return 0, errors.Wrap(err, "reserve page space")
	}
	if err := bf.file.Sync(); err != nil {
		return 0, errors.Wrap(err, "sync file after allocation")
	}
	return numPages, nil
}

// Close releases the file handle. Subsequent operations fail; closing
// twice is a no-op.
func (bf *BaseFile) Close() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file != nil {
		err := bf.file.Close()
		bf.file = nil
		return err
	}
	return nil
}
