package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, []string{"localhost", "workers.dev", "pages.dev", "vercel.app"}, cfg.HostDenylist)
	assert.Equal(t, []string{"script.google.com"}, cfg.FrameHosts)
	assert.Equal(t, "CF-IPCountry", cfg.GeoHeader)
	assert.Equal(t, 5*time.Second, cfg.UsageTimeout)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "development")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("BASE_DOMAIN", "digitalin.online")
	t.Setenv("FRAME_HOSTS", "script.google.com, sites.google.com")
	t.Setenv("USAGE_TIMEOUT", "2s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddress)
	assert.Equal(t, "digitalin.online", cfg.BaseDomain)
	assert.Equal(t, []string{"script.google.com", "sites.google.com"}, cfg.FrameHosts)
	assert.Equal(t, 2*time.Second, cfg.UsageTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\nbase_domain: example.net\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "example.net", cfg.BaseDomain)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown cache backend", map[string]string{"CACHE_BACKEND": "memcached"}},
		{"redis without address", map[string]string{"CACHE_BACKEND": "redis"}},
		{"non-numeric port", map[string]string{"PORT": "http"}},
		{"bad renew url", map[string]string{"RENEW_URL": "billing"}},
		{"zero workers", map[string]string{"USAGE_WORKERS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestConfig_Database(t *testing.T) {
	tests := []struct {
		url, path  string
		wantDriver string
		wantDSN    string
	}{
		{"", "data/db.sqlite3", "sqlite3", "data/db.sqlite3"},
		{"libsql://gaslink-acct.turso.io?authToken=x", "", "libsql", "libsql://gaslink-acct.turso.io?authToken=x"},
		{"postgres://u:p@db:5432/gaslink?sslmode=disable", "", "postgres", "postgres://u:p@db:5432/gaslink?sslmode=disable"},
		{"file:test.db?cache=shared", "", "sqlite3", "file:test.db?cache=shared"},
	}

	for _, tt := range tests {
		t.Run(tt.wantDriver+" "+tt.wantDSN, func(t *testing.T) {
			c := &Config{DatabaseURL: tt.url, DatabasePath: tt.path}
			driver, dsn := c.Database()
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}
