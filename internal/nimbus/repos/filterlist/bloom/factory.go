// Package bloom provides the host pre-check used by compiled filter sets.
package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist"
)

type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() filterlist.BloomFactory { return factory{} }

// New constructs a filter sized for capacity hosts at fpRate.
func (factory) New(capacity uint64, fpRate float64) filterlist.BloomFilter {
	m, k := size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(m, k)}
}

var _ filterlist.BloomFactory = factory{}
