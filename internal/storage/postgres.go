package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS report_documents (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores documents as rows of report_documents.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// EnsureSchema creates the documents table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating report_documents: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM report_documents WHERE key = $1`, objectKey("", key),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", key, err)
	}
	return data, nil
}

func (s *Postgres) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_documents (key, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		objectKey("", key), data, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", key, err)
	}
	return nil
}

func (s *Postgres) Stat(ctx context.Context, key string) (Info, error) {
	var info Info
	err := s.db.QueryRowContext(ctx,
		`SELECT octet_length(data), updated_at FROM report_documents WHERE key = $1`, objectKey("", key),
	).Scan(&info.Size, &info.ModTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return info, nil
}
