package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "\x01failure:"

// BadgerStore is a Store persisted in a badger database.
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	closer func() error
}

// BadgerOption configures a BadgerStore.
type BadgerOption func(*BadgerStore)

// WithTTL expires keys ttl after they were set. Zero keeps them forever.
func WithTTL(ttl time.Duration) BadgerOption {
	return func(s *BadgerStore) {
		s.ttl = ttl
	}
}

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB, opts ...BadgerOption) *BadgerStore {
	s := &BadgerStore{db: db, closer: func() error { return nil }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenBadgerStore opens a database at dir, or in memory when dir is empty.
// Close releases it.
func OpenBadgerStore(dir string, opts ...BadgerOption) (*BadgerStore, error) {
	dbOpts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		dbOpts = dbOpts.WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	s := NewBadgerStore(db, opts...)
	s.closer = db.Close
	return s, nil
}

// Has implements Store.
func (s *BadgerStore) Has(_ context.Context, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read key: %w", err)
	}
	return true, nil
}

// Set implements Store.
func (s *BadgerStore) Set(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			entry := badger.NewEntry(badgerKey(key), []byte{1})
			if s.ttl > 0 {
				entry = entry.WithTTL(s.ttl)
			}
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Close closes the database if the store opened it.
func (s *BadgerStore) Close() error {
	return s.closer()
}

func badgerKey(key string) []byte {
	return fmt.Appendf(nil, "%s%s", badgerKeyPrefix, key)
}
