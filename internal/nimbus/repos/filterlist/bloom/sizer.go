package bloom

import bitsbloom "github.com/bits-and-blooms/bloom/v3"

// defaultFPRate is used when the configured rate is outside (0, 1).
const defaultFPRate = 0.01

// size returns the bit and hash counts for n anchor hosts at false-positive
// rate p. An empty set is sized as one host so the filter is never zero-width.
func size(n uint64, p float64) (m, k uint) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = defaultFPRate
	}
	m, k = bitsbloom.EstimateParameters(uint(n), p)
	return max(m, 1), max(k, 1)
}
