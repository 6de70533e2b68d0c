// Package store persists session snapshots. Every backend stores the
// snapshot body alongside a semantic format version so that older readers
// refuse bodies they cannot interpret.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"
)

// FormatVersion is the snapshot body format written by this build.
const FormatVersion = "1.0.0"

var (
	ErrNotFound           = errors.New("store: snapshot not found")
	ErrIncompatibleFormat = errors.New("store: incompatible snapshot format")
	ErrEmptyID            = errors.New("store: empty snapshot id")
)

// SnapshotStore saves and loads session snapshots by id.
type SnapshotStore interface {
	Save(ctx context.Context, id string, snap session.Snapshot) error
	Load(ctx context.Context, id string) (session.Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Record is the stored form of a snapshot.
type Record struct {
	ID            string    `cbor:"1,keyasint" json:"id"`
	FormatVersion string    `cbor:"2,keyasint" json:"format_version"`
	Body          []byte    `cbor:"3,keyasint" json:"body"`
	UpdatedAt     time.Time `cbor:"4,keyasint" json:"updated_at"`
}

// NewRecord encodes snap under the current format version.
func NewRecord(id string, snap session.Snapshot, now time.Time) (Record, error) {
	if id == "" {
		return Record{}, ErrEmptyID
	}
	body, err := snap.Encode()
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:            id,
		FormatVersion: FormatVersion,
		Body:          body,
		UpdatedAt:     now.UTC(),
	}, nil
}

// Snapshot checks the record's format version and decodes its body.
func (r Record) Snapshot() (session.Snapshot, error) {
	if err := CheckFormat(r.FormatVersion); err != nil {
		return session.Snapshot{}, err
	}
	return session.DecodeSnapshot(r.Body)
}

// CheckFormat accepts any version sharing the current major version.
func CheckFormat(version string) error {
	got, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleFormat, version, err)
	}
	want := semver.MustParse(FormatVersion)
	if got.Major() != want.Major() {
		return fmt.Errorf("%w: %s (reader supports %d.x)", ErrIncompatibleFormat, got, want.Major())
	}
	return nil
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, id string, snap session.Snapshot) error {
	rec, err := NewRecord(id, snap, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (session.Snapshot, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.Snapshot()
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }

// put stores a raw record; tests use it to plant foreign format versions.
func (s *MemoryStore) put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
}
