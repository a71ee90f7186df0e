package metastore

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store. It is used in development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[Key]int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Key]int64)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, value int64) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key]++
	return s.values[key], nil
}

func (s *MemoryStore) IncrementIfBelow(_ context.Context, key Key, limit int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[key]
	if v >= limit {
		return v, false, nil
	}
	v++
	s.values[key] = v
	return v, true, nil
}

func (s *MemoryStore) Decrement(_ context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[key] - 1
	if v <= 0 {
		delete(s.values, key)
		return 0, nil
	}
	s.values[key] = v
	return v, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
