package offlinecache

import "errors"

// ErrNotFound is returned by Get on a miss. Storage failures are reported as
// misses too: the cache is a best-effort fallback and never fails a caller.
var ErrNotFound = errors.New("offline cache: not found")

// Store persists one record per key. Implementations must be safe for
// concurrent use, and writes to different keys must not interfere.
type Store interface {
	// Read returns the record for key, or an error wrapping ErrNotFound.
	Read(key string) ([]byte, error)
	// Write replaces the record for key.
	Write(key string, value []byte) error
	// Clear removes every record.
	Clear() error
	Close() error
}
