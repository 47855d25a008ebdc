// Package cache memoizes slug resolutions in front of the link store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultTTL is the lifetime of a cached resolution. Every Put restarts it.
const DefaultTTL = time.Hour

const keyPrefix = "link:"

var (
	// ErrMiss means no usable entry exists for the slug.
	ErrMiss = errors.New("cache miss")

	errUndecodable = errors.New("undecodable cache entry")
)

// Resolution is what the redirect path needs to answer a request without
// touching the store.
type Resolution struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	LinkID string `json:"id"`
	Frame  bool   `json:"useIframe"`
}

// Cache is a TTL keyed store of resolutions.
type Cache interface {
	Get(ctx context.Context, slug string) (Resolution, error)
	Put(ctx context.Context, slug string, res Resolution, ttl time.Duration) error
	Invalidate(ctx context.Context, slug string) error
}

// Key returns the storage key for slug.
func Key(slug string) string {
	return keyPrefix + slug
}

func encode(res Resolution) ([]byte, error) {
	return json.Marshal(res)
}

// decode rejects legacy plain-string values and records with no destination.
func decode(b []byte) (Resolution, error) {
	var res Resolution
	if err := json.Unmarshal(b, &res); err != nil {
		return Resolution{}, errUndecodable
	}
	if res.URL == "" {
		return Resolution{}, errUndecodable
	}
	return res, nil
}
