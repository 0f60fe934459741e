// Package offlinecache stores the last successfully rendered markup of each
// page, keyed by a hash of the shortened URL, for use when the network is gone.
package offlinecache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/common/utils"
)

// Options configures a Cache.
type Options struct {
	// Store is the persistent tier. nil leaves only the memory tier.
	Store Store
	// MemorySize bounds the in-memory tier; <= 0 disables it.
	MemorySize int
	Logger     logpkg.Logger
}

// Stats reports cache counters.
type Stats struct {
	Hits         uint64
	Misses       uint64
	Writes       uint64
	WriteErrors  uint64
	MemoryBodies int
}

// Cache is the offline page cache. A nil *Cache behaves as an always-empty,
// write-discarding cache.
type Cache struct {
	store  Store
	memory *lru.Cache[string, string]
	logger logpkg.Logger

	hits, misses, writes, writeErrors atomic.Uint64
}

// New builds a Cache from opts.
func New(opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	c := &Cache{store: opts.Store, logger: opts.Logger}
	if opts.MemorySize > 0 {
		mem, err := lru.New[string, string](opts.MemorySize)
		if err != nil {
			return nil, err
		}
		c.memory = mem
	}
	return c, nil
}

// Key derives the storage key for url: hex SHA-256 of its shortened form.
func Key(url string) string {
	sum := sha256.Sum256([]byte(utils.ShortenURL(url)))
	return hex.EncodeToString(sum[:])
}

// Put records content as the latest rendering of url, replacing any previous
// entry. Storage errors are logged and otherwise ignored.
func (c *Cache) Put(url, content string) {
	if c == nil {
		return
	}
	key := Key(url)
	if c.memory != nil {
		c.memory.Add(key, content)
	}
	c.writes.Add(1)
	if c.store == nil {
		return
	}
	if err := c.store.Write(key, []byte(content)); err != nil {
		c.writeErrors.Add(1)
		c.logger.Warn(map[string]any{"url": url, "key": key, "error": err}, "offline_cache_write_failed")
	}
}

// Get returns the cached content for url, or ErrNotFound.
func (c *Cache) Get(url string) (string, error) {
	if c == nil {
		return "", ErrNotFound
	}
	key := Key(url)
	if c.memory != nil {
		if v, ok := c.memory.Get(key); ok {
			c.hits.Add(1)
			return v, nil
		}
	}
	if c.store == nil {
		c.misses.Add(1)
		return "", ErrNotFound
	}
	b, err := c.store.Read(key)
	if err != nil {
		c.misses.Add(1)
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug(map[string]any{"url": url, "key": key, "error": err}, "offline_cache_read_failed")
		}
		return "", ErrNotFound
	}
	c.hits.Add(1)
	content := string(b)
	if c.memory != nil {
		c.memory.Add(key, content)
	}
	return content, nil
}

// Clear drops every entry from both tiers.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	if c.memory != nil {
		c.memory.Purge()
	}
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}

// Close releases the persistent tier.
func (c *Cache) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	st := Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Writes:      c.writes.Load(),
		WriteErrors: c.writeErrors.Load(),
	}
	if c.memory != nil {
		st.MemoryBodies = c.memory.Len()
	}
	return st
}
