package store

import (
	"context"
	"sync"

	"spamgate/internal/contact/models"
	id "spamgate/pkg/domain"
	"spamgate/pkg/platform/sentinel"
)

// InMemoryStore keeps contact messages in arrival order.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []*models.Message
	byID     map[id.MessageID]*models.Message
}

func New() *InMemoryStore {
	return &InMemoryStore{byID: make(map[id.MessageID]*models.Message)}
}

func (s *InMemoryStore) Save(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[msg.ID]; ok {
		return sentinel.ErrConflict
	}
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, msgID id.MessageID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.byID[msgID]; ok {
		return m, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListRecent returns up to limit messages, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.messages)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*models.Message, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.messages[i])
	}
	return out, nil
}
