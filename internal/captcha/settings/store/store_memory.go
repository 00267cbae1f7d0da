package store

import (
	"context"
	"sync"

	"spamgate/pkg/platform/sentinel"
)

// InMemoryStore keeps options in process memory. Used for local runs and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: make(map[string]string)}
}

// NewInMemoryStoreWith seeds the store with initial values.
func NewInMemoryStoreWith(values map[string]string) *InMemoryStore {
	s := NewInMemoryStore()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *InMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", sentinel.ErrNotFound
}

// GetMany returns the stored values for keys; unset keys are omitted.
func (s *InMemoryStore) GetMany(_ context.Context, keys []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *InMemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.values, key)
	return nil
}
