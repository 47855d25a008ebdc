package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, driver string) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(sqlx.NewDb(db, driver)), mock
}

var linkCols = []string{
	"id", "user_id", "slug", "destination_url", "title", "delivery_mode", "is_active",
	"click_count", "created_at", "updated_at", "last_accessed_at",
}

func TestStore_LinkBySlug(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	rows := sqlmock.NewRows(linkCols).
		AddRow("L1", "U1", "myapp", "https://script.google.com/macros/s/xyz/exec", "My App", "auto", true,
			int64(7), int64(1000), int64(2000), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM links WHERE slug = ? AND is_active = ?")).
		WithArgs("myapp", true).
		WillReturnRows(rows)

	l, err := s.LinkBySlug(context.Background(), "myapp")
	require.NoError(t, err)
	assert.Equal(t, "L1", l.ID)
	assert.Equal(t, "U1", l.OwnerID)
	assert.Equal(t, "My App", l.Title.String)
	assert.Equal(t, int64(7), l.ClickCount)
	assert.False(t, l.LastAccessedAt.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LinkBySlug_NotFound(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	mock.ExpectQuery("FROM links WHERE slug").WillReturnError(sql.ErrNoRows)

	_, err := s.LinkBySlug(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LinkBySlug_DBError(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	mock.ExpectQuery("FROM links WHERE slug").WillReturnError(errors.New("connection reset"))

	_, err := s.LinkBySlug(context.Background(), "myapp")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_PostgresPlaceholders(t *testing.T) {
	s, mock := newMockStore(t, DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("FROM links WHERE slug = $1 AND is_active = $2")).
		WithArgs("myapp", true).
		WillReturnRows(sqlmock.NewRows(linkCols).
			AddRow("L1", "U1", "myapp", "https://example.com", nil, "direct", true,
				int64(0), int64(1), int64(1), nil))

	l, err := s.LinkBySlug(context.Background(), "myapp")
	require.NoError(t, err)
	assert.False(t, l.Title.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SubscriptionGate(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
		WithArgs("U1").
		WillReturnRows(sqlmock.NewRows([]string{
			"subscription_tier", "subscription_expires_at", "subscription_grace_until",
		}).AddRow("pro", int64(100), int64(200)))

	g, err := s.SubscriptionGate(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "pro", g.Tier)
	assert.Equal(t, int64(200), g.GraceUntil.Int64)
}

func TestStore_SubscriptionGate_NoOwner(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	mock.ExpectQuery("FROM users").WillReturnError(sql.ErrNoRows)

	_, err := s.SubscriptionGate(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_IncrementClicks(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)
	at := time.UnixMilli(1_700_000_000_123)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE links SET click_count = click_count + 1, last_accessed_at = ? WHERE slug = ?")).
		WithArgs(at.UnixMilli(), "myapp").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.IncrementClicks(context.Background(), "myapp", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IncrementClicks_UnknownSlug(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	mock.ExpectExec("UPDATE links SET click_count").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.IncrementClicks(context.Background(), "gone", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_InsertEvent(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)
	ev := AnalyticsEvent{
		ID:        "E1",
		LinkID:    "L1",
		Timestamp: 42,
		Referrer:  sql.NullString{String: "https://ref.example", Valid: true},
	}

	mock.ExpectExec("INSERT INTO analytics").
		WithArgs("E1", "L1", int64(42), ev.Referrer, ev.UserAgent, ev.Country).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.InsertEvent(context.Background(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertEvent_Duplicate(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	mock.ExpectExec("INSERT INTO analytics").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey})

	err := s.InsertEvent(context.Background(), AnalyticsEvent{ID: "E1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStore_CreateLink_SlugTaken(t *testing.T) {
	s, mock := newMockStore(t, DriverPostgres)

	mock.ExpectExec("INSERT INTO links").WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateLink(context.Background(), Link{ID: "L2", Slug: "myapp"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStore_UpdateLink(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)
	l := Link{ID: "L1", Slug: "myapp", DestinationURL: "https://example.com", DeliveryMode: "direct", IsActive: true, UpdatedAt: 9}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE links SET slug = ?")).
		WithArgs("myapp", "https://example.com", l.Title, "direct", true, int64(9), "L1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateLink(context.Background(), l))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteLink_Missing(t *testing.T) {
	s, mock := newMockStore(t, DriverSQLite)

	mock.ExpectExec("DELETE FROM links").WithArgs("L9").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteLink(context.Background(), "L9"), ErrNotFound)
}

func TestIsUniqueConstraint(t *testing.T) {
	assert.True(t, isUniqueConstraint(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, isUniqueConstraint(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}))
	assert.True(t, isUniqueConstraint(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueConstraint(&pq.Error{Code: "23503"}))
	assert.True(t, isUniqueConstraint(errors.New("SQLITE_CONSTRAINT_UNIQUE: UNIQUE constraint failed: links.slug")))
	assert.False(t, isUniqueConstraint(errors.New("database is locked")))
	assert.False(t, isUniqueConstraint(nil))
}
