package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamgate/internal/contact/models"
	id "spamgate/pkg/domain"
	"spamgate/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &models.Message{ID: id.NewMessageID(), Body: "first"}
	second := &models.Message{ID: id.NewMessageID(), Body: "second"}
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))
	assert.ErrorIs(t, s.Save(ctx, first), sentinel.ErrConflict)

	found, err := s.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", found.Body)

	_, err = s.FindByID(ctx, id.NewMessageID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	recent, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "second", recent[0].Body)

	all, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
