// Package store is the authoritative record of links, their owners and the
// usage trail.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when no matching row exists.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Link is one tenant mapping. Timestamps are unix milliseconds.
type Link struct {
	ID             string         `db:"id"`
	OwnerID        string         `db:"user_id"`
	Slug           string         `db:"slug"`
	DestinationURL string         `db:"destination_url"`
	Title          sql.NullString `db:"title"`
	DeliveryMode   string         `db:"delivery_mode"`
	IsActive       bool           `db:"is_active"`
	ClickCount     int64          `db:"click_count"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
	LastAccessedAt sql.NullInt64  `db:"last_accessed_at"`
}

// SubscriptionGate is the slice of an owner row that decides whether their
// links still serve.
type SubscriptionGate struct {
	Tier       string        `db:"subscription_tier"`
	ExpiresAt  sql.NullInt64 `db:"subscription_expires_at"`
	GraceUntil sql.NullInt64 `db:"subscription_grace_until"`
}

// AnalyticsEvent is one append-only usage record.
type AnalyticsEvent struct {
	ID        string         `db:"id"`
	LinkID    string         `db:"link_id"`
	Timestamp int64          `db:"timestamp"`
	Referrer  sql.NullString `db:"referrer"`
	UserAgent sql.NullString `db:"user_agent"`
	Country   sql.NullString `db:"country"`
}

const linkColumns = `id, user_id, slug, destination_url, title, delivery_mode, is_active,
	click_count, created_at, updated_at, last_accessed_at`

// Store runs every query through sqlx so placeholders follow the driver.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for migrations and health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// LinkBySlug returns the active link for slug.
func (s *Store) LinkBySlug(ctx context.Context, slug string) (Link, error) {
	var l Link
	q := s.db.Rebind(`SELECT ` + linkColumns + ` FROM links WHERE slug = ? AND is_active = ?`)
	if err := s.db.GetContext(ctx, &l, q, slug, true); err != nil {
		return Link{}, notFound(err, "link by slug")
	}
	return l, nil
}

// LinkByID returns a link regardless of its active flag.
func (s *Store) LinkByID(ctx context.Context, id string) (Link, error) {
	var l Link
	q := s.db.Rebind(`SELECT ` + linkColumns + ` FROM links WHERE id = ?`)
	if err := s.db.GetContext(ctx, &l, q, id); err != nil {
		return Link{}, notFound(err, "link by id")
	}
	return l, nil
}

// LinkIDBySlug resolves a slug to its id whether or not the link is active.
func (s *Store) LinkIDBySlug(ctx context.Context, slug string) (string, error) {
	var id string
	q := s.db.Rebind(`SELECT id FROM links WHERE slug = ?`)
	if err := s.db.GetContext(ctx, &id, q, slug); err != nil {
		return "", notFound(err, "link id by slug")
	}
	return id, nil
}

// SubscriptionGate reads the owner's subscription columns.
func (s *Store) SubscriptionGate(ctx context.Context, ownerID string) (SubscriptionGate, error) {
	var g SubscriptionGate
	q := s.db.Rebind(`SELECT subscription_tier, subscription_expires_at, subscription_grace_until
		FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, &g, q, ownerID); err != nil {
		return SubscriptionGate{}, notFound(err, "subscription gate")
	}
	return g, nil
}

// IncrementClicks bumps click_count by one in a single statement so
// concurrent callers never lose an update.
func (s *Store) IncrementClicks(ctx context.Context, slug string, at time.Time) error {
	q := s.db.Rebind(`UPDATE links SET click_count = click_count + 1, last_accessed_at = ? WHERE slug = ?`)
	res, err := s.db.ExecContext(ctx, q, at.UnixMilli(), slug)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	return requireRow(res, "increment clicks")
}

// InsertEvent appends one analytics row. A duplicate id maps to ErrConflict.
func (s *Store) InsertEvent(ctx context.Context, ev AnalyticsEvent) error {
	q := s.db.Rebind(`INSERT INTO analytics (id, link_id, timestamp, referrer, user_agent, country)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q, ev.ID, ev.LinkID, ev.Timestamp, ev.Referrer, ev.UserAgent, ev.Country)
	if err != nil {
		return writeErr(err, "insert analytics event")
	}
	return nil
}

// CreateLink inserts l as given. A taken slug or id maps to ErrConflict.
func (s *Store) CreateLink(ctx context.Context, l Link) error {
	q := s.db.Rebind(`INSERT INTO links (` + linkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		l.ID, l.OwnerID, l.Slug, l.DestinationURL, l.Title, l.DeliveryMode, l.IsActive,
		l.ClickCount, l.CreatedAt, l.UpdatedAt, l.LastAccessedAt,
	)
	if err != nil {
		return writeErr(err, "create link")
	}
	return nil
}

// UpdateLink rewrites the mutable columns of l. click_count is never touched
// here so it keeps increasing monotonically.
func (s *Store) UpdateLink(ctx context.Context, l Link) error {
	q := s.db.Rebind(`UPDATE links SET slug = ?, destination_url = ?, title = ?, delivery_mode = ?,
		is_active = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q,
		l.Slug, l.DestinationURL, l.Title, l.DeliveryMode, l.IsActive, l.UpdatedAt, l.ID,
	)
	if err != nil {
		return writeErr(err, "update link")
	}
	return requireRow(res, "update link")
}

func (s *Store) DeleteLink(ctx context.Context, id string) error {
	q := s.db.Rebind(`DELETE FROM links WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return requireRow(res, "delete link")
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func writeErr(err error, op string) error {
	if isUniqueConstraint(err) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
