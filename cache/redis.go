package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

// NewRedisClient connects and pings.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Redis is the shared cache backend.
type Redis struct {
	rdb redis.Cmdable
	log *zap.Logger
}

func NewRedis(rdb redis.Cmdable, log *zap.Logger) *Redis {
	return &Redis{rdb: rdb, log: log}
}

func (r *Redis) Get(ctx context.Context, slug string) (Resolution, error) {
	b, err := r.rdb.Get(ctx, Key(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Resolution{}, ErrMiss
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("redis get %s: %w", Key(slug), err)
	}

	res, err := decode(b)
	if err != nil {
		// stale format, evict
		if delErr := r.rdb.Del(ctx, Key(slug)).Err(); delErr != nil {
			r.log.Debug("evict undecodable entry failed", zap.String("slug", slug), zap.Error(delErr))
		}
		return Resolution{}, ErrMiss
	}
	return res, nil
}

func (r *Redis) Put(ctx context.Context, slug string, res Resolution, ttl time.Duration) error {
	b, err := encode(res)
	if err != nil {
		return fmt.Errorf("encode resolution: %w", err)
	}
	if err := r.rdb.Set(ctx, Key(slug), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", Key(slug), err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, slug string) error {
	if err := r.rdb.Del(ctx, Key(slug)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", Key(slug), err)
	}
	return nil
}
