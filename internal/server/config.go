package server

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the server configuration, loaded from a TOML file with
// sensible defaults for local development.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `toml:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// SessionTTL is how long an idle session's tree is kept.
	SessionTTL duration `toml:"session_ttl"`

	Dataset DatasetConfig `toml:"dataset"`
	Cache   CacheConfig   `toml:"cache"`
}

// DatasetConfig selects the metric source. Path loads a JSON file, URL
// fetches one over HTTP; when Mongo.URI is set the MongoDB source is
// used instead. Mongo wins over URL, URL wins over Path.
type DatasetConfig struct {
	Path  string      `toml:"path"`
	URL   string      `toml:"url"`
	Mongo MongoConfig `toml:"mongo"`
}

// MongoConfig configures the MongoDB metric source.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// CacheConfig selects the artifact cache backend. Redis.Addr enables the
// Redis backend; otherwise Dir enables the file backend; with neither set
// caching is disabled.
type CacheConfig struct {
	Dir   string      `toml:"dir"`
	Redis RedisConfig `toml:"redis"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// duration wraps time.Duration for TOML decoding from strings like "24h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:     ":8080",
		LogLevel:   "info",
		SessionTTL: duration{24 * time.Hour},
	}
}

// LoadConfig reads a TOML config file, applying defaults for missing
// fields. An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.SessionTTL.Duration <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if c.Dataset.Mongo.URI != "" && c.Dataset.Mongo.Database == "" {
		return fmt.Errorf("mongo database required when uri is set")
	}
	return nil
}
