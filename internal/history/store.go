package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pkgd/internal/config"
	"pkgd/pkg/enum"

	"go.etcd.io/bbolt"
)

const (
	bucketTransactions = "transactions"
	bucketIndex        = "index"
	bucketMeta         = "meta"
	bucketActions      = "actions"
	keyJobCount        = "job_count"

	keyTimeFormat = "2006-01-02T15:04:05.000000000Z"
)

// ErrNotFound is returned when no entry has the requested transaction id.
var ErrNotFound = errors.New("transaction not found")

// Store manages the transaction database using BoltDB.
type Store struct {
	db *bbolt.DB
}

// OpenDefault opens the database at the configured data path.
func OpenDefault() (*Store, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(config.HistoryPath())
}

// Open opens or creates the transaction database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketTransactions, bucketIndex, bucketMeta, bucketActions} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
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

func entryKey(e *Entry) []byte {
	return []byte(e.Timestamp.UTC().Format(keyTimeFormat) + " " + e.TID)
}

// Record saves a complete entry.
func (s *Store) Record(entry *Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, entryKey(entry), entry)
	})
}

func put(tx *bbolt.Tx, key []byte, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := tx.Bucket([]byte(bucketTransactions)).Put(key, data); err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return tx.Bucket([]byte(bucketIndex)).Put([]byte(entry.TID), key)
}

// update loads the entry for tid, applies fn and writes it back.
func (s *Store) update(tid string, fn func(tx *bbolt.Tx, e *Entry) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(bucketIndex)).Get([]byte(tid))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, tid)
		}
		key = append([]byte(nil), key...)

		var e Entry
		if err := json.Unmarshal(tx.Bucket([]byte(bucketTransactions)).Get(key), &e); err != nil {
			return fmt.Errorf("failed to decode entry %s: %w", tid, err)
		}
		if err := fn(tx, &e); err != nil {
			return err
		}
		return put(tx, key, &e)
	})
}

// RecordTransaction creates the entry for a transaction that is about to run.
func (s *Store) RecordTransaction(tid string, role enum.Role, uid uint32, cmdline string) error {
	return s.Record(NewEntry(tid, role, uid, cmdline))
}

// RecordOutcome stores the result of a transaction. A success also resets
// the time-since-action clock of its role.
func (s *Store) RecordOutcome(tid string, succeeded bool, durationMs uint) error {
	return s.update(tid, func(tx *bbolt.Tx, e *Entry) error {
		e.Succeeded = succeeded
		e.Duration = durationMs
		if !succeeded {
			return nil
		}
		stamp, err := time.Now().MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketActions)).Put([]byte(e.Role), stamp)
	})
}

// RecordPackageList stores the packages a transaction touched.
func (s *Store) RecordPackageList(tid, data string) error {
	return s.update(tid, func(_ *bbolt.Tx, e *Entry) error {
		e.Data = data
		return nil
	})
}

// TimeSinceAction returns how long ago a transaction of role last succeeded.
// The boolean is false when it never has.
func (s *Store) TimeSinceAction(role enum.Role) (time.Duration, bool, error) {
	var (
		last  time.Time
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketActions)).Get([]byte(role.String()))
		if v == nil {
			return nil
		}
		found = true
		return last.UnmarshalBinary(v)
	})
	if err != nil || !found {
		return 0, false, err
	}
	return time.Since(last), true, nil
}

// NextJobCount increments and returns the persistent transaction counter.
func (s *Store) NextJobCount() (uint64, error) {
	var n uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		if v := meta.Get([]byte(keyJobCount)); len(v) == 8 {
			n = binary.BigEndian.Uint64(v)
		}
		n++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return meta.Put([]byte(keyJobCount), buf)
	})
	return n, err
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(bucketTransactions)).Cursor()

		for k, v := cursor.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = cursor.Prev() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}

		return nil
	})

	return entries, err
}

// Get retrieves the entry of a transaction id.
func (s *Store) Get(tid string) (*Entry, error) {
	var entry *Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(bucketIndex)).Get([]byte(tid))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, tid)
		}

		var e Entry
		if err := json.Unmarshal(tx.Bucket([]byte(bucketTransactions)).Get(key), &e); err != nil {
			return fmt.Errorf("failed to decode entry %s: %w", tid, err)
		}
		entry = &e
		return nil
	})

	return entry, err
}

// Count returns the total number of entries.
func (s *Store) Count() (int, error) {
	var count int

	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketTransactions)).Stats().KeyN
		return nil
	})

	return count, err
}

// Clear removes all entries. The transaction counter is kept.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketTransactions, bucketIndex} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Prune removes entries older than the given duration.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var deleted int

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketTransactions))
		index := tx.Bucket([]byte(bucketIndex))

		type victim struct{ key, tid []byte }
		var toDelete []victim
		cursor := bucket.Cursor()

		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			if !e.Timestamp.Before(cutoff) {
				break
			}
			toDelete = append(toDelete, victim{append([]byte(nil), k...), []byte(e.TID)})
		}

		for _, v := range toDelete {
			if err := bucket.Delete(v.key); err != nil {
				return err
			}
			if err := index.Delete(v.tid); err != nil {
				return err
			}
			deleted++
		}

		return nil
	})

	return deleted, err
}
