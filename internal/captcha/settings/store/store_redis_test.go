package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamgate/pkg/platform/sentinel"
)

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedis(client)
	ctx := context.Background()

	_, err := s.Get(ctx, "recaptcha_v3_site_key")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.NotErrorIs(t, err, sentinel.ErrNotFound)

	_, err = s.GetMany(ctx, []string{"recaptcha_v3_site_key"})
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "recaptcha_v3_message", "x"), sentinel.ErrUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, "recaptcha_v3_message"), sentinel.ErrUnavailable)
}
