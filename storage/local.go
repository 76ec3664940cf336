// Package storage holds received records: a node-local cache for immediate
// reads and a Kademlia-backed distributed store replicating records to the
// peers closest to each key.
package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// Local is the node-local record cache. It runs BadgerDB in in-memory mode:
// records live for the lifetime of the process and the network as a whole is
// the only durable store.
type Local struct {
	db *badger.DB
}

// NewLocal opens the in-memory cache.
func NewLocal() (*Local, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	return &Local{db: db}, nil
}

// Set stores a value under a key, overwriting any previous value.
func (l *Local) Set(key string, value []byte) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Get returns the value for a key, or ErrNotFound.
func (l *Local) Get(key string) ([]byte, error) {
	var value []byte
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, nil
}

// Close releases the cache.
func (l *Local) Close() error {
	return l.db.Close()
}
