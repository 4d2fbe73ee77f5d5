// Package memory implements the cache backend in process memory, for
// single-node deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/recallwatch/recallsearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is a concurrent-safe in-process key-value store with TTL entries
// and atomic counters. Expired entries are dropped lazily on read.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]entry
	counters map[string]int64
	now      func() time.Time
}

// NewStore creates an in-memory store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string]entry),
		counters: make(map[string]int64),
		now:      time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, ok := s.entries[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, db.ErrKeyNotFound
	}
	return e.value, nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// IncrBy atomically increments a counter and returns the new value.
func (s *Store) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	s.mu.Lock()
	s.counters[key] += val
	n := s.counters[key]
	s.mu.Unlock()
	return n, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady is a no-op.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }
