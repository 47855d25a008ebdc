package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"gaslink/helpers"
	"gaslink/store"
)

const (
	taskIncrementClicks = "increment_clicks"
	taskAnalyticsEvent  = "analytics_event"

	eventInsertAttempts = 3
	eventInsertDelay    = 100 * time.Millisecond
)

// UsageStore is the write side the recorder needs.
type UsageStore interface {
	IncrementClicks(ctx context.Context, slug string, at time.Time) error
	LinkIDBySlug(ctx context.Context, slug string) (string, error)
	InsertEvent(ctx context.Context, ev store.AnalyticsEvent) error
}

// Visit describes one served redirect.
type Visit struct {
	Slug      string
	LinkID    string // may be empty; resolved by slug
	Referrer  string
	UserAgent string
	Country   string
	At        time.Time
}

// Recorder turns visits into detached store writes.
type Recorder struct {
	store UsageStore
	tasks *Dispatcher
	log   *zap.Logger
	newID func() (string, error)
}

func NewRecorder(st UsageStore, tasks *Dispatcher, log *zap.Logger) *Recorder {
	return &Recorder{
		store: st,
		tasks: tasks,
		log:   log,
		newID: helpers.NewEventID,
	}
}

// Record submits the click increment and the analytics insert as two
// independent tasks. It never blocks on either.
func (r *Recorder) Record(v Visit) {
	r.tasks.Submit(Task{
		Name: taskIncrementClicks,
		Run:  func(ctx context.Context) error { return r.incrementClicks(ctx, v) },
	})
	r.tasks.Submit(Task{
		Name: taskAnalyticsEvent,
		Run:  func(ctx context.Context) error { return r.appendEvent(ctx, v) },
	})
}

// incrementClicks is not retried: a retry after an ambiguous failure could
// count the visit twice.
func (r *Recorder) incrementClicks(ctx context.Context, v Visit) error {
	if err := r.store.IncrementClicks(ctx, v.Slug, v.At); err != nil {
		return fmt.Errorf("increment clicks for %q: %w", v.Slug, err)
	}
	return nil
}

func (r *Recorder) appendEvent(ctx context.Context, v Visit) error {
	linkID := v.LinkID
	if linkID == "" {
		id, err := r.store.LinkIDBySlug(ctx, v.Slug)
		if errors.Is(err, store.ErrNotFound) {
			r.log.Debug("link vanished before analytics write", zap.String("slug", v.Slug))
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve link id for %q: %w", v.Slug, err)
		}
		linkID = id
	}

	id, err := r.newID()
	if err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	ev := store.AnalyticsEvent{
		ID:        id,
		LinkID:    linkID,
		Timestamp: v.At.UnixMilli(),
		Referrer:  nullable(v.Referrer),
		UserAgent: nullable(v.UserAgent),
		Country:   nullable(v.Country),
	}

	// the event id makes retries idempotent: a conflict means an earlier
	// attempt already landed
	return retry.Do(
		func() error {
			err := r.store.InsertEvent(ctx, ev)
			if errors.Is(err, store.ErrConflict) {
				return nil
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(eventInsertAttempts),
		retry.Delay(eventInsertDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.log.Warn("retrying analytics insert", zap.Uint("attempt", n+1), zap.String("slug", v.Slug), zap.Error(err))
		}),
	)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
