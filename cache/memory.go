package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Memory is an in-process backend for single-instance deployments. Entries
// carry their own deadline; the LRU bound only limits memory.
type Memory struct {
	lru *lru.Cache
	now func() time.Time
}

type memEntry struct {
	res       Resolution
	expiresAt time.Time
}

func NewMemory(size int) (*Memory, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, slug string) (Resolution, error) {
	v, ok := m.lru.Get(Key(slug))
	if !ok {
		return Resolution{}, ErrMiss
	}
	e, ok := v.(memEntry)
	if !ok {
		m.lru.Remove(Key(slug)) // type mismatch, evict
		return Resolution{}, ErrMiss
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(Key(slug))
		return Resolution{}, ErrMiss
	}
	return e.res, nil
}

func (m *Memory) Put(_ context.Context, slug string, res Resolution, ttl time.Duration) error {
	m.lru.Add(Key(slug), memEntry{res: res, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *Memory) Invalidate(_ context.Context, slug string) error {
	m.lru.Remove(Key(slug))
	return nil
}
