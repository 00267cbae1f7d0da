// Package redis connects the shared Redis instance that holds captcha
// options for every spamgate replica.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spamgate/internal/platform/config"
)

// DefaultOptionHash is used when the configuration names no hash.
const DefaultOptionHash = "spamgate:options"

const defaultPingTimeout = 5 * time.Second

// Client is a connected go-redis client plus the hash the option store
// keeps its values in.
type Client struct {
	*redis.Client
	optionHash string
}

// New connects using cfg and pings within the dial timeout. It returns nil
// when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	hash := cfg.Hash
	if hash == "" {
		hash = DefaultOptionHash
	}
	c := &Client{Client: redis.NewClient(opts), optionHash: hash}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return c, nil
}

// OptionHash names the hash captcha options live in.
func (c *Client) OptionHash() string {
	return c.optionHash
}

// Health pings Redis; it backs the /healthz "redis" check.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}
