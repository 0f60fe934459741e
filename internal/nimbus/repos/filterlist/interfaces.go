package filterlist

import "github.com/haukened/nimbus/internal/nimbus/domain"

// BloomFilter is the minimal interface the filter set needs from Bloom filters.
// It answers "might a rule be anchored at this host?" before the host index is
// consulted.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds Bloom filters sized for capacity n at false-positive rate p.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches block decisions per request key. Implementations must
// be safe for concurrent use; every FilterSet owns its own cache, so a reload
// never serves decisions computed against the previous rules.
type DecisionCache interface {
	Get(key string) (domain.BlockDecision, bool)
	Put(key string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() CacheStats
}
