package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS session_snapshots (
    id TEXT PRIMARY KEY,
    format_version TEXT NOT NULL,
    body BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore keeps snapshots in a PostgreSQL table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Init creates the snapshot table.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("store: init postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, id string, snap session.Snapshot) error {
	rec, err := NewRecord(id, snap, s.now())
	if err != nil {
		return err
	}
	query := `
		INSERT INTO session_snapshots (id, format_version, body, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			format_version = EXCLUDED.format_version,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.FormatVersion, rec.Body, rec.UpdatedAt); err != nil {
		return fmt.Errorf("store: save %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (session.Snapshot, error) {
	query := `SELECT id, format_version, body, updated_at FROM session_snapshots WHERE id = $1`
	var rec Record
	err := s.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.FormatVersion, &rec.Body, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	return rec.Snapshot()
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	return listIDs(ctx, s.db, `SELECT id FROM session_snapshots ORDER BY id`)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
