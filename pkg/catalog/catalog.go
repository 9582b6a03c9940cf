package catalog

import (
	"sync"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
	"minirel/pkg/tuple"
)

// Catalog maps table names and identifiers to their open files and
// schemas. It satisfies the buffer pool's TableResolver.
type Catalog struct {
	mu        sync.RWMutex
	idToTable map[primitives.TableID]*tableInfo
	nameToID  map[string]primitives.TableID
}

type tableInfo struct {
	name string
	file page.DbFile
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		idToTable: make(map[primitives.TableID]*tableInfo),
		nameToID:  make(map[string]primitives.TableID),
	}
}

// AddTable registers file under name. Re-registering a name replaces
// the previous table, matching the newest-wins behavior expected when
// a table is rebuilt.
func (c *Catalog) AddTable(file page.DbFile, name string) error {
	if file == nil {
		return errors.New("table file cannot be nil")
	}
	if name == "" {
		return errors.New("table name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if oldID, ok := c.nameToID[name]; ok {
		delete(c.idToTable, oldID)
	}
	c.idToTable[file.GetID()] = &tableInfo{name: name, file: file}
	c.nameToID[name] = file.GetID()
	return nil
}

// GetDbFile returns the open file for tableID.
func (c *Catalog) GetDbFile(tableID primitives.TableID) (page.DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.idToTable[tableID]
	if !ok {
		return nil, errors.Errorf("no table with id %d", tableID)
	}
	return info.file, nil
}

// GetTableID returns the identifier of the named table.
func (c *Catalog) GetTableID(name string) (primitives.TableID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.nameToID[name]
	if !ok {
		return 0, errors.Errorf("no table named %q", name)
	}
	return id, nil
}

// GetTableName returns the name registered for tableID.
func (c *Catalog) GetTableName(tableID primitives.TableID) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.idToTable[tableID]
	if !ok {
		return "", errors.Errorf("no table with id %d", tableID)
	}
	return info.name, nil
}

// GetTupleDesc returns the schema of tableID.
func (c *Catalog) GetTupleDesc(tableID primitives.TableID) (*tuple.TupleDescription, error) {
	file, err := c.GetDbFile(tableID)
	if err != nil {
		return nil, err
	}
	return file.GetTupleDesc(), nil
}

// TableNames returns every registered table name, in no particular
// order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.nameToID))
	for name := range c.nameToID {
		names = append(names, name)
	}
	return names
}

// Close closes every registered table file, returning the first error
// encountered.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, info := range c.idToTable {
		if err := info.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
