// Package sqlite persists session records in a local SQLite file, the
// default backend for a single-resident portal process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hongminglow/portal-gateway/internal/storage"
)

var _ storage.SessionRecords = (*Store)(nil)

// Store is a SQLite-backed storage.SessionRecords.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and runs migrations.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	// One writer; avoids "database is locked" between establish and clear.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS portal_sessions (
		session_key TEXT PRIMARY KEY,
		sealed      TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: apply migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, key string) (string, error) {
	var sealed string
	err := s.db.QueryRowContext(ctx, `SELECT sealed FROM portal_sessions WHERE session_key = ?`, key).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("sqlite: load session: %w", err)
	}
	return sealed, nil
}

func (s *Store) Save(ctx context.Context, key, sealed string) error {
	const query = `
	INSERT INTO portal_sessions (session_key, sealed, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_key) DO UPDATE SET sealed = excluded.sealed, updated_at = excluded.updated_at;`
	if _, err := s.db.ExecContext(ctx, query, key, sealed, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("sqlite: save session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM portal_sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	return nil
}
