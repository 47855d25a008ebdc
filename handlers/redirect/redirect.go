package redirect

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"gaslink/cache"
	"gaslink/delivery"
	"gaslink/metrics"
	"gaslink/store"
	"gaslink/workers"
)

// LinkStore is the read side of the authoritative store.
type LinkStore interface {
	LinkBySlug(ctx context.Context, slug string) (store.Link, error)
	SubscriptionGate(ctx context.Context, ownerID string) (store.SubscriptionGate, error)
}

// UsageRecorder accepts visits without blocking.
type UsageRecorder interface {
	Record(v workers.Visit)
}

// SlugResolver picks the slug out of a request.
type SlugResolver interface {
	FromRequest(host, path string) (string, bool)
}

// Deps wires a Handler. Cache, Usage and Metrics may be nil.
type Deps struct {
	Store     LinkStore
	Cache     cache.Cache
	Usage     UsageRecorder
	Slugs     SlugResolver
	Policy    delivery.Policy
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	RenewURL  string
	GeoHeader string
	CacheTTL  time.Duration
}

// Handler serves tenant redirects.
type Handler struct {
	store     LinkStore
	cache     cache.Cache
	usage     UsageRecorder
	slugs     SlugResolver
	policy    delivery.Policy
	log       *zap.Logger
	metrics   *metrics.Metrics
	renewURL  string
	geoHeader string
	ttl       time.Duration
	now       func() time.Time
}

func New(d Deps) *Handler {
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:     d.Store,
		cache:     d.Cache,
		usage:     d.Usage,
		slugs:     d.Slugs,
		policy:    d.Policy,
		log:       log,
		metrics:   d.Metrics,
		renewURL:  d.RenewURL,
		geoHeader: d.GeoHeader,
		ttl:       ttl,
		now:       time.Now,
	}
}

// GET|HEAD on any tenant host or path
func (h *Handler) Redirect(c echo.Context) error {
	req := c.Request()

	slug, ok := h.slugs.FromRequest(req.Host, req.URL.Path)
	if !ok {
		h.metrics.Resolution(StatusNotFound.String())
		return renderNotFound(c)
	}

	ctx := req.Context()
	l, err := h.lookup(ctx, slug)
	if err != nil {
		h.log.Error("link lookup failed", zap.String("slug", slug), zap.Error(err))
		h.metrics.Resolution("error")
		return renderInternalError(c)
	}

	now := h.now()
	d := Decide(l, now, h.policy)
	h.metrics.Resolution(d.Status.String())

	switch d.Status {
	case StatusNotFound:
		return renderNotFound(c)
	case StatusExpired:
		return renderExpired(c, h.renewURL)
	}

	if _, ok := l.(Miss); ok {
		h.populate(ctx, slug, d.Target)
	}
	h.recordVisit(c, slug, d.Target.LinkID, now)

	return renderOK(c, d.Target)
}
