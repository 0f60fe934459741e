// Package bolt stores offline cache records in a single bbolt database, one
// key per page.
package bolt

import (
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/nimbus/internal/nimbus/repos/offlinecache"
)

var bucketPages = []byte("pages")

// boltStore implements offlinecache.Store using bbolt.
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures the bucket exists.
func New(path string) (offlinecache.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPages)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Read(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPages)
		if b == nil {
			return offlinecache.ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%s: %w", key, offlinecache.ErrNotFound)
		}
		// v is only valid inside the transaction
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	return out, err
}

func (s *boltStore) Write(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketPages)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

func (s *boltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketPages) != nil {
			if err := tx.DeleteBucket(bucketPages); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucketPages)
		return err
	})
}

var _ offlinecache.Store = (*boltStore)(nil)
