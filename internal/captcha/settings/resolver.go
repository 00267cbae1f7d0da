package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"spamgate/internal/captcha/hooks"
	"spamgate/internal/captcha/models"
	dErrors "spamgate/pkg/domain-errors"
	"spamgate/pkg/platform/sentinel"
)

// Store is the external key/value store options live in. Get returns
// sentinel.ErrNotFound for a key that was never set.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MultiGetter is implemented by stores that read several options in one
// round trip. Keys that were never set are absent from the result.
type MultiGetter interface {
	GetMany(ctx context.Context, keys []string) (map[string]string, error)
}

// Resolver turns fixed sources, the store and hooks into a Configuration.
// Precedence per key: fixed source, then store; site and secret keys then
// pass through their hooks.
type Resolver struct {
	store  Store
	fixed  FixedSource
	hooks  *hooks.Hooks
	logger *slog.Logger
}

type Option func(*Resolver)

func WithFixedSource(src FixedSource) Option {
	return func(r *Resolver) {
		r.fixed = src
	}
}

func WithHooks(h *hooks.Hooks) Option {
	return func(r *Resolver) {
		r.hooks = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func New(store Store, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	r := &Resolver{
		store:  store,
		fixed:  Sources{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Lookup resolves one raw value and reports whether it came from a fixed source.
func (r *Resolver) Lookup(ctx context.Context, key Key) (string, bool, error) {
	if v, ok := r.fixed.Lookup(key); ok {
		return v, true, nil
	}
	v, err := r.store.Get(ctx, string(key))
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("failed to read option %s", key))
	}
	return v, false, nil
}

// IsFixed reports whether key is defined by a fixed source.
func (r *Resolver) IsFixed(key Key) bool {
	_, ok := r.fixed.Lookup(key)
	return ok
}

// Resolve evaluates every key once. Call it once per request and pass the
// Configuration by value.
//
// Keys resolve independently. A store failure on an optional key falls back
// to that key's default; Resolve fails only when the site key or secret key
// is not fixed and cannot be read.
func (r *Resolver) Resolve(ctx context.Context) (models.Configuration, error) {
	raw := make(map[Key]string, len(Keys))
	fixed := make(map[Key]bool, len(Keys))
	var pending []Key
	for _, key := range Keys {
		if v, ok := r.fixed.Lookup(key); ok {
			raw[key] = v
			fixed[key] = true
			continue
		}
		pending = append(pending, key)
	}

	stored, failed := r.readStore(ctx, pending)
	for _, key := range pending {
		err, ok := failed[key]
		if !ok {
			raw[key] = stored[key]
			continue
		}
		if key.Required() {
			return models.Configuration{}, dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("failed to read option %s", key))
		}
		r.logger.WarnContext(ctx, "captcha option unreadable, using default", "key", string(key), "error", err)
	}

	return models.Configuration{
		SiteKey:            r.hooks.ApplySiteKey(raw[KeySiteKey]),
		SecretKey:          r.hooks.ApplySecretKey(raw[KeySecretKey]),
		Threshold:          r.threshold(ctx, raw[KeyThreshold]),
		DisplayBadge:       parseFlag(raw[KeyDisplayBadge]),
		Message:            raw[KeyMessage],
		UseAlternateDomain: parseFlag(raw[KeyAlternateDomain]),
		SiteKeyFixed:       fixed[KeySiteKey],
		SecretKeyFixed:     fixed[KeySecretKey],
	}, nil
}

// readStore reads keys from the store, in one call when the store supports
// it. Keys that were never set are absent from both maps.
func (r *Resolver) readStore(ctx context.Context, keys []Key) (map[Key]string, map[Key]error) {
	values := make(map[Key]string, len(keys))
	failed := make(map[Key]error)
	if len(keys) == 0 {
		return values, failed
	}

	if mg, ok := r.store.(MultiGetter); ok {
		names := make([]string, len(keys))
		for i, key := range keys {
			names[i] = string(key)
		}
		got, err := mg.GetMany(ctx, names)
		if err != nil {
			for _, key := range keys {
				failed[key] = err
			}
			return values, failed
		}
		for _, key := range keys {
			if v, ok := got[string(key)]; ok {
				values[key] = v
			}
		}
		return values, failed
	}

	for _, key := range keys {
		v, err := r.store.Get(ctx, string(key))
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
		case err != nil:
			failed[key] = err
		default:
			values[key] = v
		}
	}
	return values, failed
}

// Available reports whether both keys resolve to non-empty values. A store
// failure on a key that is not fixed counts as unavailable.
func (r *Resolver) Available(ctx context.Context) bool {
	cfg, err := r.Resolve(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "captcha settings unavailable", "error", err)
		return false
	}
	return cfg.Available()
}

func (r *Resolver) threshold(ctx context.Context, raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.DefaultThreshold
	}
	t, err := parseThreshold(raw)
	if err != nil {
		r.logger.WarnContext(ctx, "ignoring invalid captcha threshold", "value", raw, "error", err)
		return models.DefaultThreshold
	}
	return t
}

func parseThreshold(raw string) (float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("threshold must be a number: %w", err)
	}
	if math.IsNaN(t) || t < 0 || t > 1 {
		return 0, fmt.Errorf("threshold %v outside [0,1]", t)
	}
	return t, nil
}

// Entry is one option as shown to administrators.
type Entry struct {
	Key   Key    `json:"key"`
	Value string `json:"value"`
	Fixed bool   `json:"fixed"`
}

// Entries lists every option with its raw value. Secret values are masked.
func (r *Resolver) Entries(ctx context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, len(Keys))
	for _, key := range Keys {
		v, fixed, err := r.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if key.Secret() {
			v = mask(v)
		}
		entries = append(entries, Entry{Key: key, Value: v, Fixed: fixed})
	}
	return entries, nil
}

// Update writes one option to the store. Keys defined by a fixed source are
// read-only; an empty value deletes the stored option.
func (r *Resolver) Update(ctx context.Context, key Key, value string) error {
	if r.IsFixed(key) {
		return dErrors.New(dErrors.CodeForbidden, fmt.Sprintf("%s is defined in code and cannot be changed", key.Name()))
	}
	if key == KeyThreshold && strings.TrimSpace(value) != "" {
		if _, err := parseThreshold(value); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid threshold")
		}
	}

	var err error
	if value == "" {
		err = r.store.Delete(ctx, string(key))
		if errors.Is(err, sentinel.ErrNotFound) {
			err = nil
		}
	} else {
		err = r.store.Set(ctx, string(key), value)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("failed to write option %s", key))
	}

	r.logger.InfoContext(ctx, "captcha option updated", "key", string(key), "cleared", value == "")
	return nil
}

func mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
