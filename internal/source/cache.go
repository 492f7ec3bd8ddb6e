package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/JonMunkholm/nurserymap/internal/metrics"
)

// DefaultCacheTTL is how long a fetched text stays fresh.
const DefaultCacheTTL = time.Hour

const cacheKeyPrefix = "csv-cache:v1:"

// CacheKey returns the store key for a location.
func CacheKey(location string) string {
	return cacheKeyPrefix + location
}

// Store is a byte-oriented key/value backend for the text cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// cacheEntry is the persisted envelope. Fields are decoded loosely so a
// type-mismatched entry can be told apart from a missing one.
type cacheEntry struct {
	Timestamp any `json:"timestamp"`
	Data      any `json:"data"`
}

// TextCache stores decoded source text with a time-to-live.
//
// Expired, malformed or type-mismatched entries are misses: they are
// deleted and never reported as errors.
type TextCache struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTextCache wraps store. A non-positive ttl uses DefaultCacheTTL.
func NewTextCache(store Store, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *TextCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextCache{store: store, ttl: ttl, now: time.Now, logger: logger, metrics: m}
}

// Lookup returns the cached text for location when it is fresh.
func (c *TextCache) Lookup(ctx context.Context, location string) (string, bool) {
	key := CacheKey(location)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		c.metrics.CacheMiss()
		return "", false
	}
	if !ok {
		c.metrics.CacheMiss()
		return "", false
	}

	text, reason := c.decode(raw)
	if reason != "" {
		c.logger.Debug("discarding cache entry", "key", key, "reason", reason)
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("cache delete failed", "key", key, "error", err)
		}
		c.metrics.CacheMiss()
		return "", false
	}

	c.metrics.CacheHit()
	return text, true
}

// decode validates an envelope. A non-empty reason means the entry is
// unusable.
func (c *TextCache) decode(raw []byte) (string, string) {
	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", "malformed"
	}
	ts, ok := e.Timestamp.(float64)
	if !ok || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return "", "bad timestamp"
	}
	data, ok := e.Data.(string)
	if !ok {
		return "", "bad data"
	}
	age := c.now().Sub(time.UnixMilli(int64(ts)))
	if age > c.ttl {
		return "", "expired"
	}
	return data, ""
}

// Save stores text for location stamped with the current time.
func (c *TextCache) Save(ctx context.Context, location, text string) error {
	raw, err := json.Marshal(cacheEntry{
		Timestamp: c.now().UnixMilli(),
		Data:      text,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.store.Set(ctx, CacheKey(location), raw); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (c *TextCache) Close() error {
	return c.store.Close()
}
