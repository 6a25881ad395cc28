// Package boltcache persists crawl responses in a bbolt database file,
// giving the engine's response cache a life beyond one process. Install it
// with Settings.Cache.
package boltcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/spindleworks/spindle"
)

const fileName = "spindle.db"

var bucketResponses = []byte("responses")

// Cache is a spindle.Cache backed by a single bbolt file.
type Cache struct {
	db *bolt.DB
}

// Open creates dir when needed and opens (or creates) the cache database
// inside it. Close the cache when the last crawl using it is done.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, fileName), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResponses)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the stored entry for fingerprint, nil on a miss.
func (c *Cache) Get(fingerprint string) (*spindle.CacheEntry, error) {
	var entry *spindle.CacheEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketResponses).Get([]byte(fingerprint))
		if raw == nil {
			return nil
		}
		entry = new(spindle.CacheEntry)
		if err := json.Unmarshal(raw, entry); err != nil {
			entry = nil
			return fmt.Errorf("decode cache entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put stores entry under its fingerprint, replacing any previous one.
func (c *Cache) Put(entry *spindle.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).Put([]byte(entry.Fingerprint), raw)
	})
}

// Len reports the number of stored entries.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketResponses).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying database file.
func (c *Cache) Close() error {
	return c.db.Close()
}
