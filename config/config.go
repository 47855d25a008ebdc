package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the app.
type Config struct {
	Port            string        `mapstructure:"port"             validate:"required,numeric"`
	AppEnv          string        `mapstructure:"app_env"          validate:"oneof=development production test"`
	LogLevel        string        `mapstructure:"log_level"        validate:"oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	DatabaseURL  string `mapstructure:"database_url"`
	DatabasePath string `mapstructure:"database_path" validate:"required_without=DatabaseURL"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`

	CacheBackend  string `mapstructure:"cache_backend"  validate:"oneof=redis memory"`
	CacheSize     int    `mapstructure:"cache_size"     validate:"gt=0"`
	RedisAddress  string `mapstructure:"redis_address"  validate:"required_if=CacheBackend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"       validate:"gte=0"`

	BaseDomain   string   `mapstructure:"base_domain"`
	HostDenylist []string `mapstructure:"host_denylist"`
	FrameHosts   []string `mapstructure:"frame_hosts"`
	GeoHeader    string   `mapstructure:"geo_header"`
	RenewURL     string   `mapstructure:"renew_url" validate:"required,url"`

	UsageWorkers int           `mapstructure:"usage_workers" validate:"gt=0"`
	UsageQueue   int           `mapstructure:"usage_queue"   validate:"gt=0"`
	UsageTimeout time.Duration `mapstructure:"usage_timeout" validate:"gt=0"`

	RateLimitMax int           `mapstructure:"rate_limit_max" validate:"gte=0"`
	RateLimitPer time.Duration `mapstructure:"rate_limit_per" validate:"required_unless=RateLimitMax 0"`
}

var defaults = map[string]any{
	"port":             "8080",
	"app_env":          "production",
	"log_level":        "info",
	"shutdown_timeout": 10 * time.Second,
	"database_url":     "",
	"database_path":    "data/db.sqlite3",
	"auto_migrate":     false,
	"cache_backend":    "memory",
	"cache_size":       10000,
	"redis_address":    "",
	"redis_password":   "",
	"redis_db":         0,
	"base_domain":      "",
	"host_denylist":    []string{"localhost", "workers.dev", "pages.dev", "vercel.app"},
	"frame_hosts":      []string{"script.google.com"},
	"geo_header":       "CF-IPCountry",
	"renew_url":        "https://gaslink.app/dashboard/billing",
	"usage_workers":    4,
	"usage_queue":      8192,
	"usage_timeout":    5 * time.Second,
	"rate_limit_max":   0,
	"rate_limit_per":   time.Minute,
}

// Load reads defaults, then the optional config file at path, then the
// environment. Environment variables are the upper-cased keys (PORT,
// CACHE_BACKEND, ...); list values are comma separated.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HostDenylist = splitList(cfg.HostDenylist)
	cfg.FrameHosts = splitList(cfg.FrameHosts)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Database picks the driver from the DSN: libsql and postgres URLs go to
// their drivers, anything else is a sqlite3 DSN. Without DATABASE_URL the
// local sqlite file at DATABASE_PATH is used.
func (c *Config) Database() (driver, dsn string) {
	u := c.DatabaseURL
	switch {
	case u == "":
		return "sqlite3", c.DatabasePath
	case hasAnyPrefix(u, "libsql://", "https://", "http://", "wss://", "ws://"):
		return "libsql", u
	case hasAnyPrefix(u, "postgres://", "postgresql://"):
		return "postgres", u
	default:
		return "sqlite3", u
	}
}

// IsDevelopment reports whether development logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.LogLevel == "debug" || c.AppEnv == "development"
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// splitList flattens entries that still hold commas and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
