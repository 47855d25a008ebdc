package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(client, zap.NewNop()), s
}

func TestRedis_PutGetRoundTrip(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	want := Resolution{URL: "https://script.google.com/macros/s/xyz/exec", Title: "My App", LinkID: "L1", Frame: true}
	require.NoError(t, c.Put(ctx, "myapp", want, DefaultTTL))

	got, err := c.Get(ctx, "myapp")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, DefaultTTL, s.TTL("link:myapp"))

	raw, err := s.Get("link:myapp")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://script.google.com/macros/s/xyz/exec","title":"My App","id":"L1","useIframe":true}`, raw)
}

func TestRedis_Miss(t *testing.T) {
	c, _ := setupTestRedis(t)

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_ExpiresAfterTTL(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "myapp", Resolution{URL: "https://example.com"}, DefaultTTL))
	s.FastForward(DefaultTTL - time.Second)
	_, err := c.Get(ctx, "myapp")
	require.NoError(t, err)

	s.FastForward(2 * time.Second)
	_, err = c.Get(ctx, "myapp")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_PutResetsTTL(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "myapp", Resolution{URL: "https://example.com"}, DefaultTTL))
	s.FastForward(30 * time.Minute)
	require.NoError(t, c.Put(ctx, "myapp", Resolution{URL: "https://example.com/v2"}, DefaultTTL))

	assert.Equal(t, DefaultTTL, s.TTL("link:myapp"))
}

func TestRedis_Invalidate(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "myapp", Resolution{URL: "https://example.com"}, DefaultTTL))
	require.NoError(t, c.Invalidate(ctx, "myapp"))

	_, err := c.Get(ctx, "myapp")
	assert.ErrorIs(t, err, ErrMiss)
	assert.False(t, s.Exists("link:myapp"))
	assert.NoError(t, c.Invalidate(ctx, "never-set"))
}

func TestRedis_LegacyStringEntryIsEvicted(t *testing.T) {
	c, s := setupTestRedis(t)
	require.NoError(t, s.Set("link:myapp", "https://example.com"))

	_, err := c.Get(context.Background(), "myapp")
	assert.ErrorIs(t, err, ErrMiss)
	assert.False(t, s.Exists("link:myapp"))
}

func TestRedis_BackendErrorIsNotAMiss(t *testing.T) {
	c, s := setupTestRedis(t)
	s.Close()

	_, err := c.Get(context.Background(), "myapp")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNewRedisClient_EmptyAddress(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyAddress)
}
