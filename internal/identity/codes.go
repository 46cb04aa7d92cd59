package identity

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCodeCacheSize = 128

// CodeLoader resolves a faculty id to its code.
type CodeLoader func(ctx context.Context, facultyID int64) (string, error)

// CodeCache keeps recently used faculty codes in memory. Faculty codes are
// effectively static, so a short TTL is enough to pick up renames.
type CodeCache struct {
	lru    *expirable.LRU[int64, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCodeCache creates a cache holding up to size codes for ttl each.
func NewCodeCache(size int, ttl time.Duration) *CodeCache {
	if size <= 0 {
		size = defaultCodeCacheSize
	}
	return &CodeCache{lru: expirable.NewLRU[int64, string](size, nil, ttl)}
}

// Get returns the cached code for facultyID, loading it on a miss.
func (c *CodeCache) Get(ctx context.Context, facultyID int64, load CodeLoader) (string, error) {
	if code, ok := c.lru.Get(facultyID); ok {
		c.hits.Add(1)
		return code, nil
	}
	c.misses.Add(1)

	code, err := load(ctx, facultyID)
	if err != nil {
		return "", err
	}
	code = NormalizeCode(code)
	if code == "" {
		return "", ErrInvalidFacultyCode
	}
	c.lru.Add(facultyID, code)
	return code, nil
}

// Stats returns hit and miss counters.
func (c *CodeCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
