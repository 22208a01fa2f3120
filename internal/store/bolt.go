// Package store persists the fleet's proxy assignments across restarts
// using an embedded BoltDB database.
package store

import (
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketProxyAssignments = []byte("proxy_assignments")

// Store wraps a BoltDB database for inspectbot persistence.
type Store struct {
	db *bolt.DB
}

// Open creates or opens a BoltDB database at the given path and ensures
// the required bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProxyAssignments)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveProxyAssignment persists the proxy name assigned to a bot index so
// the same bot reuses the same proxy across restarts.
func (s *Store) SaveProxyAssignment(botIndex int, proxyName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProxyAssignments)
		return b.Put(botIndexKey(botIndex), []byte(proxyName))
	})
}

// GetProxyAssignment returns the proxy name previously assigned to a bot
// index. Returns ("", false) if no assignment is stored.
func (s *Store) GetProxyAssignment(botIndex int) (string, bool) {
	var name string
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProxyAssignments)
		v := b.Get(botIndexKey(botIndex))
		if v != nil {
			name = string(v)
		}
		return nil
	})
	return name, name != ""
}

// AllProxyAssignments returns every persisted bot index -> proxy name mapping.
func (s *Store) AllProxyAssignments() (map[int]string, error) {
	result := make(map[int]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProxyAssignments)
		return b.ForEach(func(k, v []byte) error {
			idx, err := strconv.Atoi(string(k))
			if err != nil {
				return nil // skip malformed keys
			}
			result[idx] = string(v)
			return nil
		})
	})
	return result, err
}

// DeleteProxyAssignment removes a bot's persisted proxy assignment, e.g.
// after the proxy stops responding and the bot must be reassigned.
func (s *Store) DeleteProxyAssignment(botIndex int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProxyAssignments)
		return b.Delete(botIndexKey(botIndex))
	})
}

func botIndexKey(botIndex int) []byte {
	return []byte(strconv.Itoa(botIndex))
}
