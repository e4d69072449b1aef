package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongminglow/portal-gateway/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.SessionRecords interface at compile time.
var _ storage.SessionRecords = (*Store)(nil)

// Store provides Postgres-backed persistence for sealed sessions.
type Store struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new Store and runs migrations.
func NewSessionStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS portal_sessions (
			session_key TEXT PRIMARY KEY,
			sealed TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`ALTER TABLE portal_sessions ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW();`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// Load fetches the sealed session stored under key.
func (s *Store) Load(ctx context.Context, key string) (string, error) {
	const query = `SELECT sealed FROM portal_sessions WHERE session_key = $1;`
	var sealed string
	if err := s.pool.QueryRow(ctx, query, key).Scan(&sealed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return sealed, nil
}

// Save upserts the sealed session for key.
func (s *Store) Save(ctx context.Context, key, sealed string) error {
	const query = `
	INSERT INTO portal_sessions (session_key, sealed)
	VALUES ($1, $2)
	ON CONFLICT (session_key) DO UPDATE SET sealed = EXCLUDED.sealed, updated_at = NOW();
	`
	if _, err := s.pool.Exec(ctx, query, key, sealed); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the record for key, if any.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM portal_sessions WHERE session_key = $1;`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
