// Package lru provides the per-FilterSet decision cache.
package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist"
)

// decisionCache is an LRU-backed filterlist.DecisionCache tracking hits,
// misses and evictions.
type decisionCache struct {
	lru       *lru.Cache[string, domain.BlockDecision]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache always misses.
type disabledCache struct{}

// New creates a DecisionCache holding up to size decisions. If size <= 0 a
// disabled cache is returned.
func New(size int) (filterlist.DecisionCache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}

	dc := &decisionCache{capacity: size}
	cache, err := lru.NewWithEvict(size, func(string, domain.BlockDecision) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

// Factory adapts New to filterlist.CompileOptions.NewCache.
func Factory(size int) func() (filterlist.DecisionCache, error) {
	return func() (filterlist.DecisionCache, error) { return New(size) }
}

func (c *decisionCache) Get(key string) (domain.BlockDecision, bool) {
	if val, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return val, true
	}
	c.misses.Add(1)
	return domain.BlockDecision{}, false
}

func (c *decisionCache) Put(key string, d domain.BlockDecision) { c.lru.Add(key, d) }

func (c *decisionCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *decisionCache) Purge() { c.lru.Purge() }

func (c *decisionCache) Stats() filterlist.CacheStats {
	return filterlist.CacheStats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (disabledCache) Get(string) (domain.BlockDecision, bool) { return domain.BlockDecision{}, false }
func (disabledCache) Put(string, domain.BlockDecision)        {}
func (disabledCache) Len() int                                 { return 0 }
func (disabledCache) Purge()                                   {}
func (disabledCache) Stats() filterlist.CacheStats             { return filterlist.CacheStats{} }

var _ filterlist.DecisionCache = (*decisionCache)(nil)
var _ filterlist.DecisionCache = disabledCache{}
