package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite

	"sitepulse/pkg/platform/sentinel"
)

// SQLiteStore keeps records in an embedded SQLite file, for single-node
// deployments and the replay tool.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		// WAL + busy timeout to avoid "database is locked"
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS consent_records (
			visitor_id TEXT    NOT NULL,
			key        TEXT    NOT NULL,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
			PRIMARY KEY (visitor_id, key)
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create consent_records: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, visitorID, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM consent_records WHERE visitor_id = ? AND key = ?`,
		visitorID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Set(ctx context.Context, visitorID, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_records (visitor_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT (visitor_id, key) DO UPDATE SET value = excluded.value, updated_at = unixepoch()`,
		visitorID, key, string(value),
	)
	if err != nil {
		return fmt.Errorf("upsert consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, visitorID, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM consent_records WHERE visitor_id = ? AND key = ?`,
		visitorID, key,
	)
	if err != nil {
		return fmt.Errorf("delete consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
