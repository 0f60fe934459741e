package filterlist

import "time"

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// SetStats describes a compiled FilterSet.
type SetStats struct {
	BlockRules     int       // blocking rules compiled
	ExceptionRules int       // exception rules compiled
	IndexedHosts   int       // distinct anchor hosts in the host index
	Rejected       int       // rules dropped at compile time (bad regex)
	BuiltAt        time.Time // when the set was compiled
	Cache          CacheStats
}
