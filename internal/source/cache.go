package source

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("fetch")

// Cache stores fetched source bodies keyed by URL, expiring after a TTL.
type Cache struct {
	db  *bolt.DB
	ttl time.Duration

	// Now is used for expiry checks; tests override it.
	Now func() time.Time
}

// OpenCache opens (creating if needed) the bolt file at path.
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open fetch cache: %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initializing fetch cache bucket")
	}
	return &Cache{db: db, ttl: ttl, Now: time.Now}, nil
}

// Get returns the cached body for key if present and not expired.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cacheBucket).Get([]byte(key))
		if len(v) < 8 {
			return nil
		}
		stored := time.Unix(0, int64(binary.BigEndian.Uint64(v[:8])))
		if c.ttl > 0 && c.Now().Sub(stored) > c.ttl {
			return nil
		}
		// Bolt values are only valid inside the transaction.
		out = append([]byte(nil), v[8:]...)
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "read fetch cache")
	}
	return out, out != nil, nil
}

// Put stores body under key, stamped with the current time.
func (c *Cache) Put(key string, body []byte) error {
	v := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(v[:8], uint64(c.Now().UnixNano()))
	copy(v[8:], body)
	return errors.Wrap(c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(key), v)
	}), "write fetch cache")
}

func (c *Cache) Close() error {
	return c.db.Close()
}
