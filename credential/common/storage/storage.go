// Package storage provides the key set backing the verifier's failure
// memory: an in-memory reference store and a badger-backed persistent one.
package storage

import (
	"context"
	"sync"
)

// Store is a set of string keys. Set is an idempotent insert of all keys or
// none.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, keys ...string) error
	Delete(ctx context.Context, key string) error
}

// MemStore is a Store held in memory.
type MemStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{keys: make(map[string]struct{})}
}

// Has implements Store.
func (s *MemStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[key]
	return ok, nil
}

// Set implements Store.
func (s *MemStore) Set(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		s.keys[key] = struct{}{}
	}
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)
	return nil
}

// Len returns the number of keys.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.keys)
}
