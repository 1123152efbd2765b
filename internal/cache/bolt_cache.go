package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketName = "embeddings"

// BoltCache is a single-file local cache, the default under ~/.teamgraph
type BoltCache struct {
	db *bolt.DB
}

var _ Cache = (*BoltCache)(nil)

// OpenBoltCache opens or creates the cache file at path
func OpenBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt cache: %w", err)
	}
	return &BoltCache{db: db}, nil
}

// Get retrieves a cached vector
func (c *BoltCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	var vec []float32
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &vec)
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt get %s: %w", key, err)
	}
	return vec, found, nil
}

// Set stores a vector
func (c *BoltCache) Set(_ context.Context, key string, vector []float32) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		data, err := json.Marshal(vector)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), data)
	})
}

// Len counts cached entries
func (c *BoltCache) Len() int {
	n := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket([]byte(bucketName)); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})
	return n
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
