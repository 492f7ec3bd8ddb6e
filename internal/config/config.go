// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Sources  SourcesConfig
	Cache    CacheConfig
	S3       S3Config
	Refresh  RefreshConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// SourcesConfig names the open-data inputs.
type SourcesConfig struct {
	// AvailabilityURL is the location of the availability dataset (required).
	// http(s)://, s3://bucket/key, file:// and plain paths are accepted.
	AvailabilityURL string `env:"AVAILABILITY_URL" envAlt:"AVAILABILITY_CSV_URL" required:"true"`

	// AvailabilityEncoding is the text encoding of the availability dataset (default: shift-jis)
	AvailabilityEncoding string `env:"AVAILABILITY_ENCODING" default:"shift-jis"`

	// Base lists base registries as key=location pairs, e.g.
	// "certified=https://example.org/ninka.csv,small=s3://bucket/small.csv"
	Base []string `env:"BASE_SOURCES"`

	// BaseEncoding is the text encoding of every base registry (default: shift-jis)
	BaseEncoding string `env:"BASE_SOURCE_ENCODING" default:"shift-jis"`

	// Weekdays are the weekday names probed in slot columns (default: 月..土)
	Weekdays []string `env:"WEEKDAYS" default:"月,火,水,木,金,土"`

	// OpenMarkers are the cell values that mean "accepting" (default: ○ ◯ 〇 ◎)
	OpenMarkers []string `env:"AVAILABILITY_OPEN_MARKERS" default:"○,◯,〇,◎"`

	// ParseWorkers bounds concurrent dataset parsing (default: 4)
	ParseWorkers int `env:"PARSE_WORKERS" default:"4"`

	// UserAgent is sent with HTTP fetches
	UserAgent string `env:"FETCH_USER_AGENT" default:"nurserymap/1.0"`

	// MaxBytes caps a single source download (default: 64MiB)
	MaxBytes int64 `env:"FETCH_MAX_BYTES" default:"67108864"`
}

// BaseSource is one parsed BASE_SOURCES entry.
type BaseSource struct {
	Key      string
	Location string
}

// BaseSources splits the configured key=location pairs.
func (c *SourcesConfig) BaseSources() ([]BaseSource, error) {
	out := make([]BaseSource, 0, len(c.Base))
	for _, entry := range c.Base {
		key, loc, ok := strings.Cut(entry, "=")
		key, loc = strings.TrimSpace(key), strings.TrimSpace(loc)
		if !ok || key == "" || loc == "" {
			return nil, fmt.Errorf("BASE_SOURCES entry %q: want key=location", entry)
		}
		out = append(out, BaseSource{Key: key, Location: loc})
	}
	return out, nil
}

// CacheConfig holds the source text cache settings.
type CacheConfig struct {
	// Driver is the cache backend: memory, sqlite, postgres or none (default: memory)
	Driver string `env:"CACHE_DRIVER" default:"memory"`

	// TTL is how long a fetched text stays fresh (default: 1h)
	TTL time.Duration `env:"CACHE_TTL" default:"1h"`

	// SQLitePath is the database file for the sqlite driver
	SQLitePath string `env:"CACHE_SQLITE_PATH" default:"data/source-cache.db"`

	// PostgresURL is the connection string for the postgres driver.
	// Supports both CACHE_DATABASE_URL and DATABASE_URL.
	PostgresURL string `env:"CACHE_DATABASE_URL" envAlt:"DATABASE_URL"`
}

// S3Config holds settings for s3:// sources.
type S3Config struct {
	// Region is the AWS region (default: ap-northeast-1)
	Region string `env:"S3_REGION" envAlt:"AWS_REGION" default:"ap-northeast-1"`

	// Endpoint overrides the S3 endpoint for compatible stores such as MinIO
	Endpoint string `env:"S3_ENDPOINT"`

	// AccessKeyID and SecretAccessKey are optional static credentials;
	// the default AWS credential chain is used when unset.
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`

	// PathStyle forces path-style addressing (default: false)
	PathStyle bool `env:"S3_PATH_STYLE" default:"false"`
}

// RefreshConfig controls snapshot rebuilding.
type RefreshConfig struct {
	// Interval is how often the snapshot is rebuilt; 0 builds once at startup (default: 1h)
	Interval time.Duration `env:"REFRESH_INTERVAL" default:"1h"`

	// Timeout bounds a single refresh (default: 5m)
	Timeout time.Duration `env:"REFRESH_TIMEOUT" default:"5m"`

	// MaxConcurrentFetches bounds parallel source downloads (default: 4)
	MaxConcurrentFetches int `env:"REFRESH_MAX_CONCURRENT_FETCHES" default:"4"`

	// MaxFetchWait is how long a fetch waits for a slot (default: 30s)
	MaxFetchWait time.Duration `env:"REFRESH_MAX_FETCH_WAIT" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// RefreshLimit is requests per minute for POST /api/refresh (default: 5)
	RefreshLimit int `env:"RATE_LIMIT_REFRESH" default:"5"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RefreshToken, when set, must be sent as a Bearer token to POST /api/refresh
	RefreshToken string `env:"REFRESH_TOKEN"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
