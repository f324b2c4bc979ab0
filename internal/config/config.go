// Package config loads the bridge configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/gh-api-bridge/pkg/cache"
	"github.com/Sternrassler/gh-api-bridge/pkg/client"
	"github.com/Sternrassler/gh-api-bridge/pkg/logging"
	"github.com/caarlos0/env/v11"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds all process configuration.
type Config struct {
	// HTTP
	Port string `env:"PORT" envDefault:"8080"`

	// Logging
	LogLevel  logging.LogLevel `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool             `env:"LOG_PRETTY" envDefault:"false"`

	// Cache
	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"file"`
	StorageDir   string        `env:"STORAGE_DIR" envDefault:"storage"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5h"`

	// GitHub
	GitHubAPIURL   string        `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	UserAgent      string        `env:"USER_AGENT" envDefault:"GitHub API bridge v0.1.0"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"1"`

	// Coordinator
	CoalesceRequests bool `env:"COALESCE_REQUESTS" envDefault:"true"`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: vars})
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(string(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch c.CacheBackend {
	case BackendFile:
		if c.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required for the file backend")
		}
	case BackendRedis:
		if _, err := url.Parse(c.RedisURL); err != nil || c.RedisURL == "" {
			return fmt.Errorf("invalid REDIS_URL %q", c.RedisURL)
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q (got %q)", BackendFile, BackendRedis, c.CacheBackend)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive (got %s)", c.CacheTTL)
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout > client.MaxTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT must be in (0, %s] (got %s)", client.MaxTimeout, c.RequestTimeout)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("USER_AGENT must not be empty")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be >= 1 (got %d)", c.MaxAttempts)
	}
	if u, err := url.Parse(c.GitHubAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid GITHUB_API_URL %q", c.GitHubAPIURL)
	}
	return nil
}

// ClientConfig derives the GitHub client configuration.
func (c Config) ClientConfig() client.Config {
	cc := client.DefaultConfig()
	cc.BaseURL = c.GitHubAPIURL
	cc.Timeout = c.RequestTimeout
	cc.UserAgent = c.UserAgent
	cc.Retry.MaxAttempts = c.MaxAttempts
	return cc
}

// LoggingConfig derives the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Pretty = c.LogPretty
	return lc
}

// TTL returns the cache TTL, falling back to the default.
func (c Config) TTL() time.Duration {
	if c.CacheTTL <= 0 {
		return cache.DefaultTTL
	}
	return c.CacheTTL
}
