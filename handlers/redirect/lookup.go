package redirect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gaslink/cache"
	"gaslink/store"
)

// Lookup is one of Hit, Miss or NotFound.
type Lookup interface {
	isLookup()
}

// Hit came from the cache.
type Hit struct {
	Entry cache.Resolution
}

// Miss came from the store. Gate is nil when the owner row is absent.
type Miss struct {
	Link store.Link
	Gate *store.SubscriptionGate
}

// NotFound means no active link carries the slug.
type NotFound struct{}

func (Hit) isLookup()      {}
func (Miss) isLookup()     {}
func (NotFound) isLookup() {}

// lookup reads the cache, then the store. A cache read error is treated as
// a miss; a store read error is returned.
func (h *Handler) lookup(ctx context.Context, slug string) (Lookup, error) {
	if h.cache != nil {
		res, err := h.cache.Get(ctx, slug)
		switch {
		case err == nil:
			h.metrics.CacheLookup("hit")
			return Hit{Entry: res}, nil
		case errors.Is(err, cache.ErrMiss):
			h.metrics.CacheLookup("miss")
		default:
			h.metrics.CacheLookup("error")
			h.log.Warn("cache read failed, falling back to store", zap.String("slug", slug), zap.Error(err))
		}
	}

	link, err := h.store.LinkBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return NotFound{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load link %q: %w", slug, err)
	}

	miss := Miss{Link: link}
	gate, err := h.store.SubscriptionGate(ctx, link.OwnerID)
	switch {
	case err == nil:
		miss.Gate = &gate
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("load owner of %q: %w", slug, err)
	}
	return miss, nil
}

// populate writes an OK miss back to the cache. Failures only cost a
// future store read.
func (h *Handler) populate(ctx context.Context, slug string, t Target) {
	if h.cache == nil {
		return
	}
	err := h.cache.Put(context.WithoutCancel(ctx), slug, cache.Resolution{
		URL:    t.URL,
		Title:  t.Title,
		LinkID: t.LinkID,
		Frame:  t.Frame,
	}, h.ttl)
	h.metrics.CacheWrite("put", err)
	if err != nil {
		h.log.Warn("cache populate failed", zap.String("slug", slug), zap.Error(err))
	}
}
