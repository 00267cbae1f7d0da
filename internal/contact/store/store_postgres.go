package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"spamgate/internal/contact/models"
	id "spamgate/pkg/domain"
	"spamgate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore keeps contact messages in the contact_messages table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the messages table and its listing index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS contact_messages (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL,
			subject    TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL,
			ip         TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create contact_messages table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS contact_messages_created_at_idx
			ON contact_messages (created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("create contact_messages index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, msg *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, body, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(msg.ID), msg.Name, msg.Email, msg.Subject, msg.Body, msg.IP, msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save contact message: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, msgID id.MessageID) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, subject, body, ip, created_at
		FROM contact_messages WHERE id = $1
	`, uuid.UUID(msgID))
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find contact message: %w", err)
	}
	return msg, nil
}

// ListRecent returns up to limit messages, newest first. A non-positive limit
// returns every message.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, name, email, subject, body, ip, created_at
		FROM contact_messages ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg   models.Message
		rawID uuid.UUID
	)
	if err := row.Scan(&rawID, &msg.Name, &msg.Email, &msg.Subject, &msg.Body, &msg.IP, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.ID = id.MessageID(rawID)
	return &msg, nil
}
