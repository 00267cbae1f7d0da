package user

import (
	"context"
	"strings"
	"sync"

	"spamgate/internal/auth/models"
	id "spamgate/pkg/domain"
	"spamgate/pkg/platform/sentinel"
)

// InMemoryUserStore indexes users by ID, username and email. Username and
// email lookups are case-insensitive.
type InMemoryUserStore struct {
	mu         sync.RWMutex
	users      map[id.UserID]*models.User
	byUsername map[string]id.UserID
	byEmail    map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:      make(map[id.UserID]*models.User),
		byUsername: make(map[string]id.UserID),
		byEmail:    make(map[string]id.UserID),
	}
}

// Save inserts user. A username or email already taken by another user
// returns sentinel.ErrConflict.
func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uname, email := fold(user.Username), fold(user.Email)
	if owner, ok := s.byUsername[uname]; ok && owner != user.ID {
		return sentinel.ErrConflict
	}
	if owner, ok := s.byEmail[email]; ok && owner != user.ID {
		return sentinel.ErrConflict
	}

	s.users[user.ID] = user
	s.byUsername[uname] = user.ID
	s.byEmail[email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uid, ok := s.byUsername[fold(username)]; ok {
		return s.users[uid], nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uid, ok := s.byEmail[fold(email)]; ok {
		return s.users[uid], nil
	}
	return nil, sentinel.ErrNotFound
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
