// Package proxy stores per-user network proxy settings in a BoltDB database.
package proxy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"pkgd/internal/config"
	"pkgd/pkg/backend"
)

const bucketProxy = "proxy"

// Store manages proxy settings keyed by uid and session.
type Store struct {
	db *bbolt.DB
}

type record struct {
	backend.Proxy
	Updated time.Time `json:"updated"`
}

// OpenDefault opens the database at the configured data path.
func OpenDefault() (*Store, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(config.ProxyPath())
}

// Open opens or creates the proxy database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketProxy))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func key(uid uint32, session string) []byte {
	return []byte(strconv.FormatUint(uint64(uid), 10) + "\x00" + session)
}

// Set stores the proxy settings of a user session. An empty Proxy deletes them.
func (s *Store) Set(uid uint32, session string, p backend.Proxy) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketProxy))
		if p == (backend.Proxy{}) {
			return b.Delete(key(uid, session))
		}
		data, err := json.Marshal(record{Proxy: p, Updated: time.Now()})
		if err != nil {
			return fmt.Errorf("failed to marshal proxy: %w", err)
		}
		return b.Put(key(uid, session), data)
	})
}

// Get returns the proxy settings of a user session. The boolean is false
// when none are stored.
func (s *Store) Get(uid uint32, session string) (backend.Proxy, bool, error) {
	var (
		rec   record
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketProxy)).Get(key(uid, session))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return backend.Proxy{}, false, fmt.Errorf("failed to read proxy: %w", err)
	}
	return rec.Proxy, found, nil
}
