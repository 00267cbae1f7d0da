package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"spamgate/internal/auth/models"
	id "spamgate/pkg/domain"
	"spamgate/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	ctx context.Context
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.ctx = context.Background()
}

func newUser(username, email string) *models.User {
	return &models.User{ID: id.NewUserID(), Username: username, Email: email}
}

func (s *InMemoryUserStoreSuite) TestLookupBehavior() {
	store := New()
	user := newUser("Jane", "Jane.Doe@example.com")
	s.Require().NoError(store.Save(s.ctx, user))

	s.Run("by ID", func() {
		found, err := store.FindByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("by username, case-insensitive", func() {
		found, err := store.FindByUsername(s.ctx, "jane")
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("by email, case-insensitive", func() {
		found, err := store.FindByEmail(s.ctx, "jane.doe@EXAMPLE.com")
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("missing users return ErrNotFound", func() {
		_, err := store.FindByID(s.ctx, id.NewUserID())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = store.FindByUsername(s.ctx, "nobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = store.FindByEmail(s.ctx, "nobody@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryUserStoreSuite) TestUniqueness() {
	store := New()
	user := newUser("jane", "jane@example.com")
	s.Require().NoError(store.Save(s.ctx, user))

	s.ErrorIs(store.Save(s.ctx, newUser("JANE", "other@example.com")), sentinel.ErrConflict)
	s.ErrorIs(store.Save(s.ctx, newUser("other", "JANE@example.com")), sentinel.ErrConflict)
	s.NoError(store.Save(s.ctx, user), "saving the same user again is an update")
}
