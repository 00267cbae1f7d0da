package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"spamgate/pkg/platform/sentinel"
)

var redisGetDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "spamgate_option_redis_get_duration_ms",
	Help:    "Latency of option reads from Redis in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// DefaultRedisHash is the hash all options share.
const DefaultRedisHash = "spamgate:options"

// RedisStore keeps options in a single Redis hash so every instance of the
// host sees the same configuration.
type RedisStore struct {
	client *redis.Client
	hash   string
}

type RedisOption func(*RedisStore)

// WithHash overrides the hash name, for running several sites on one Redis.
func WithHash(hash string) RedisOption {
	return func(s *RedisStore) {
		if hash != "" {
			s.hash = hash
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, hash: DefaultRedisHash}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	defer func() {
		redisGetDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", unavailable("get option "+key, err)
	}
	return v, nil
}

// GetMany reads keys with a single HMGET. Fields missing from the hash are
// omitted from the result.
func (s *RedisStore) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	start := time.Now()
	defer func() {
		redisGetDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	vals, err := s.client.HMGet(ctx, s.hash, keys...).Result()
	if err != nil {
		return nil, unavailable("get options", err)
	}
	out := make(map[string]string, len(keys))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return unavailable("set option "+key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.HDel(ctx, s.hash, key).Result()
	if err != nil {
		return unavailable("delete option "+key, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// unavailable marks a Redis failure as sentinel.ErrUnavailable while keeping
// the client error in the chain.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
