package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sitepulse/pkg/platform/sentinel"
)

// pgExecutor is the subset of *pgxpool.Pool the store needs.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps records in a consent_records table.
type PostgresStore struct {
	db pgExecutor
}

func NewPostgres(db pgExecutor) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the consent_records table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS consent_records (
			visitor_id TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			value      TEXT        NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (visitor_id, key)
		)`)
	if err != nil {
		return fmt.Errorf("create consent_records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, visitorID, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM consent_records WHERE visitor_id = $1 AND key = $2`,
		visitorID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return []byte(value), nil
}

func (s *PostgresStore) Set(ctx context.Context, visitorID, key string, value []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO consent_records (visitor_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (visitor_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		visitorID, key, string(value),
	)
	if err != nil {
		return fmt.Errorf("upsert consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, visitorID, key string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM consent_records WHERE visitor_id = $1 AND key = $2`,
		visitorID, key,
	)
	if err != nil {
		return fmt.Errorf("delete consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
