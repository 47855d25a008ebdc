package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"gaslink/cache"
	"gaslink/config"
	"gaslink/store"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = level
	return zc.Build()
}

func openDB(cfg *config.Config, log *zap.Logger) (*sqlx.DB, error) {
	driver, dsn := cfg.Database()
	switch driver {
	case store.DriverSQLite:
		log.Info("using local sqlite file", zap.String("path", dsn))
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	default:
		log.Info("using remote database", zap.String("driver", driver))
	}

	db, err := store.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(db, "up"); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("schema up to date")
	}
	return db, nil
}

// newCache builds the configured backend. The returned func releases it.
func newCache(cfg *config.Config, log *zap.Logger) (cache.Cache, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis cache", zap.String("address", cfg.RedisAddress))
		return cache.NewRedis(client, log), func() { _ = client.Close() }, nil
	default:
		mem, err := cache.NewMemory(cfg.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using in-process cache", zap.Int("size", cfg.CacheSize))
		return mem, func() {}, nil
	}
}
