package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/config"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"
)

func testSnapshot(t *testing.T) session.Snapshot {
	t.Helper()
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	c, err := session.New(ctx, session.Options{
		SessionID: "sess-store",
		Seed:      42,
		Settings: policy.Settings{
			Persona:   "founder",
			Stress:    policy.StressCalm,
			Autonomy:  policy.AutonomyExecuteWithApproval,
			BudgetCap: budget.MustParse("5.00"),
		},
		Clock: func() time.Time { return at },
	})
	require.NoError(t, err)
	id, ok := c.PacketFor(policy.CategoryTravel)
	require.True(t, ok)
	_, err = c.Apply(ctx, packet.Approve{PacketID: id})
	require.NoError(t, err)
	return c.Snapshot()
}

func requireSameSnapshot(t *testing.T, want, got session.Snapshot) {
	t.Helper()
	a, err := want.Encode()
	require.NoError(t, err)
	b, err := got.Encode()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, CheckFormat(FormatVersion))
	assert.NoError(t, CheckFormat("1.4.2"))
	assert.ErrorIs(t, CheckFormat("2.0.0"), ErrIncompatibleFormat)
	assert.ErrorIs(t, CheckFormat("0.9.0"), ErrIncompatibleFormat)
	assert.ErrorIs(t, CheckFormat("not-a-version"), ErrIncompatibleFormat)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	snap := testSnapshot(t)
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, "b", snap))
	require.NoError(t, s.Save(ctx, "a", snap))
	assert.ErrorIs(t, s.Save(ctx, "", snap), ErrEmptyID)

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	requireSameSnapshot(t, snap, got)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := NewRecord("future", snap, time.Now())
	require.NoError(t, err)
	rec.FormatVersion = "2.1.0"
	s.put(rec)
	_, err = s.Load(ctx, "future")
	assert.ErrorIs(t, err, ErrIncompatibleFormat)
}

func TestRestoredSnapshotResumes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, "sess", testSnapshot(t)))

	snap, err := s.Load(ctx, "sess")
	require.NoError(t, err)
	c, err := session.Restore(ctx, snap, session.Options{})
	require.NoError(t, err)
	assert.False(t, c.Frozen())

	v, err := c.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(ctx, db)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	snap := testSnapshot(t)
	require.NoError(t, s.Save(ctx, "sess-1", snap))
	require.NoError(t, s.Save(ctx, "sess-1", snap))
	require.NoError(t, s.Save(ctx, "sess-2", snap))

	got, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	requireSameSnapshot(t, snap, got)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1", "sess-2"}, ids)

	_, err = s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.ExecContext(ctx, `UPDATE session_snapshots SET format_version = '3.0.0' WHERE id = 'sess-2'`)
	require.NoError(t, err)
	_, err = s.Load(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrIncompatibleFormat)
}

func TestPostgresStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	s := NewPostgresStore(db)
	snap := testSnapshot(t)
	body, err := snap.Encode()
	require.NoError(t, err)
	now := time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS session_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Init(ctx))

	mock.ExpectExec("INSERT INTO session_snapshots").
		WithArgs("sess-1", FormatVersion, body, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.Save(ctx, "sess-1", snap))

	columns := []string{"id", "format_version", "body", "updated_at"}
	mock.ExpectQuery("SELECT id, format_version, body, updated_at FROM session_snapshots").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("sess-1", FormatVersion, body, now))
	got, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	requireSameSnapshot(t, snap, got)

	mock.ExpectQuery("SELECT id, format_version, body, updated_at FROM session_snapshots").
		WithArgs("sess-2").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("sess-2", "2.0.0", body, now))
	_, err = s.Load(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrIncompatibleFormat)

	mock.ExpectQuery("SELECT id, format_version, body, updated_at FROM session_snapshots").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("SELECT id FROM session_snapshots ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sess-1").AddRow("sess-2"))
	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1", "sess-2"}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordCBORIsDeterministic(t *testing.T) {
	rec, err := NewRecord("sess", testSnapshot(t), time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	a, err := encMode.Marshal(rec)
	require.NoError(t, err)
	b, err := encMode.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// TestRedisStore_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Skipping Redis integration test: redis not available")
	}
	prefix := "helm-sim-test:" + time.Now().Format("150405.000000") + ":"
	s := NewRedisStore(client, prefix)
	defer func() { _ = s.Close() }()

	snap := testSnapshot(t)
	require.NoError(t, s.Save(ctx, "sess-1", snap))
	defer client.Del(ctx, prefix+"sess-1")

	got, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	requireSameSnapshot(t, snap, got)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, ids)

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.StoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	assert.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "etcd", DSN: "x"})
	assert.Error(t, err)
}
