package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"spamgate/pkg/platform/sentinel"
)

const undefinedTable = "42P01"

// PostgresStore persists options in the captcha_options table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the options table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS captcha_options (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create captcha_options table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM captcha_options WHERE name = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get option %s: %w", key, translate(err))
	}
	return value, nil
}

// GetMany reads keys in one query. Unset keys are omitted from the result.
func (s *PostgresStore) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM captcha_options WHERE name = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("get options: %w", translate(err))
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get options: %w", translate(err))
	}
	return out, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO captcha_options (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("set option %s: %w", key, translate(err))
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM captcha_options WHERE name = $1`, key)
	if err != nil {
		return fmt.Errorf("delete option %s: %w", key, translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete option %s: %w", key, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// translate marks a missing schema as unavailable rather than a generic failure.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("%w: captcha_options table missing", sentinel.ErrUnavailable)
	}
	return err
}
