package extract

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of extracted documents kept in memory.
const DefaultCacheSize = 500

type cacheEntry struct {
	mtimeMs float64
	result  Result
}

// ContentCache holds recent extraction results keyed by path.
//
// Reads use Peek, which leaves recency untouched, so eviction removes the
// entry inserted longest ago. An entry is valid only for the mtime it was
// stored with. The cache is safe for concurrent use.
type ContentCache struct {
	entries *lru.Cache[string, cacheEntry]
}

// NewContentCache creates a cache bounded to size entries.
func NewContentCache(size int) (*ContentCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cache: %w", err)
	}
	return &ContentCache{entries: entries}, nil
}

// Get returns a copy of the cached result for path if it was stored with
// the same mtime. A stale entry is dropped.
func (c *ContentCache) Get(path string, mtimeMs float64) (*Result, bool) {
	e, ok := c.entries.Peek(path)
	if !ok {
		return nil, false
	}
	if e.mtimeMs != mtimeMs {
		c.entries.Remove(path)
		return nil, false
	}
	r := e.result
	return &r, true
}

// Put stores r for path at mtimeMs. Replacing an entry counts as a new
// insertion for eviction order.
func (c *ContentCache) Put(path string, mtimeMs float64, r *Result) {
	if r == nil {
		return
	}
	c.entries.Remove(path)
	c.entries.Add(path, cacheEntry{mtimeMs: mtimeMs, result: *r})
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *ContentCache) Purge() {
	c.entries.Purge()
}
