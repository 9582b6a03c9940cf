package tuple

// Iterator walks a sequence of tuples. All iterators follow the
// open/next/close discipline: Open before use, HasNext before every
// Next, Close when done. Rewind restarts from the beginning.
type Iterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*Tuple, error)
	Rewind() error
	Close() error
}
