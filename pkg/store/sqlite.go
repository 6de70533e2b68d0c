package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS session_snapshots (
        id TEXT PRIMARY KEY,
        format_version TEXT NOT NULL,
        body BLOB NOT NULL,
        updated_at TEXT NOT NULL
    );`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: migrate sqlite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, id string, snap session.Snapshot) error {
	rec, err := NewRecord(id, snap, s.now())
	if err != nil {
		return err
	}
	query := `
        INSERT INTO session_snapshots (id, format_version, body, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            format_version = excluded.format_version,
            body = excluded.body,
            updated_at = excluded.updated_at
    `
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.FormatVersion, rec.Body, rec.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("store: save %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (session.Snapshot, error) {
	query := `SELECT id, format_version, body, updated_at FROM session_snapshots WHERE id = ?`
	var (
		rec     Record
		updated string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.FormatVersion, &rec.Body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return session.Snapshot{}, fmt.Errorf("store: load %s: updated_at: %w", id, err)
	}
	return rec.Snapshot()
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	return listIDs(ctx, s.db, `SELECT id FROM session_snapshots ORDER BY id`)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func listIDs(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
