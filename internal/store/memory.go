package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in tests and local development.
// TTLs are honored lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]memoryValue
	nowFunc func() time.Time
}

type memoryValue struct {
	data      string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memoryValue),
		nowFunc: time.Now,
	}
}

// SetClock overrides the clock used for TTL checks in tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = now
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	if !val.expiresAt.IsZero() && s.nowFunc().After(val.expiresAt) {
		return "", ErrNotFound
	}
	return val.data, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	val := memoryValue{data: value}
	if ttl > 0 {
		val.expiresAt = s.nowFunc().Add(ttl)
	}
	s.values[key] = val
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
