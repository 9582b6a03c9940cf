package memory

import (
	"minirel/pkg/primitives"
	"minirel/pkg/storage/page"
)

// PageCache is the buffer pool's resident-page index. At most one Page
// instance exists per PageID. The cache itself never evicts; the store
// chooses victims so the no-steal rule stays in one place.
type PageCache interface {
	// Get returns the cached page and refreshes its recency.
	Get(pid primitives.PageID) (page.Page, bool)

	// Put inserts or replaces the page and makes it most recent.
	Put(pid primitives.PageID, p page.Page)

	// Remove drops the page if present.
	Remove(pid primitives.PageID)

	// Size returns the number of resident pages.
	Size() int

	// GetAll returns resident pages ordered least recently used first.
	GetAll() []page.Page
}

type cacheNode struct {
	pid  primitives.PageID
	p    page.Page
	prev *cacheNode
	next *cacheNode
}

// lruPageCache is a doubly linked list plus index map. The list runs
// from least recent at the front to most recent at the back. Callers
// synchronize; the store's mutex guards every access.
type lruPageCache struct {
	items map[primitives.PageID]*cacheNode
	head  *cacheNode // sentinel, LRU side
	tail  *cacheNode // sentinel, MRU side
}

// NewLRUPageCache creates an empty recency-ordered cache.
func NewLRUPageCache() PageCache {
	head := &cacheNode{}
	tail := &cacheNode{}
	head.next = tail
	tail.prev = head
	return &lruPageCache{
		items: make(map[primitives.PageID]*cacheNode),
		head:  head,
		tail:  tail,
	}
}

func (c *lruPageCache) unlink(n *cacheNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *lruPageCache) pushBack(n *cacheNode) {
	n.prev = c.tail.prev
	n.next = c.tail
	c.tail.prev.next = n
	c.tail.prev = n
}

func (c *lruPageCache) Get(pid primitives.PageID) (page.Page, bool) {
	n, ok := c.items[pid]
	if !ok {
		return nil, false
	}
	c.unlink(n)
	c.pushBack(n)
	return n.p, true
}

func (c *lruPageCache) Put(pid primitives.PageID, p page.Page) {
	if n, ok := c.items[pid]; ok {
		n.p = p
		c.unlink(n)
		c.pushBack(n)
		return
	}
	n := &cacheNode{pid: pid, p: p}
	c.items[pid] = n
	c.pushBack(n)
}

func (c *lruPageCache) Remove(pid primitives.PageID) {
	n, ok := c.items[pid]
	if !ok {
		return
	}
	c.unlink(n)
	delete(c.items, pid)
}

func (c *lruPageCache) Size() int {
	return len(c.items)
}

func (c *lruPageCache) GetAll() []page.Page {
	out := make([]page.Page, 0, len(c.items))
	for n := c.head.next; n != c.tail; n = n.next {
		out = append(out, n.p)
	}
	return out
}
