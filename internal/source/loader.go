package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Loader fetches, decodes and caches source text. It satisfies
// core.SourceLoader.
type Loader struct {
	fetcher         Fetcher
	cache           *TextCache
	defaultEncoding string
	logger          *slog.Logger
}

// NewLoader creates a Loader. cache may be nil to disable caching.
func NewLoader(fetcher Fetcher, cache *TextCache, defaultEncoding string, logger *slog.Logger) *Loader {
	if defaultEncoding == "" {
		defaultEncoding = DefaultEncoding
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fetcher:         fetcher,
		cache:           cache,
		defaultEncoding: defaultEncoding,
		logger:          logger,
	}
}

// Load returns the decoded text at location.
//
// A fresh cache entry short-circuits the fetch. After a successful fetch
// and decode the text is written back; cache write failures are logged
// and otherwise ignored.
func (l *Loader) Load(ctx context.Context, location, encoding string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("%w: empty location", ErrSourceNotFound)
	}
	if encoding == "" {
		encoding = l.defaultEncoding
	}

	if l.cache != nil {
		if text, ok := l.cache.Lookup(ctx, location); ok {
			l.logger.Debug("source served from cache", "location", location)
			return text, nil
		}
	}

	raw, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return "", err
	}

	text, err := Decode(raw, encoding)
	if err != nil {
		return "", fmt.Errorf("%s: %w", location, err)
	}

	l.logger.Debug("source fetched",
		"location", location,
		"encoding", encoding,
		"bytes", len(raw),
	)

	if l.cache != nil {
		if err := l.cache.Save(ctx, location, text); err != nil {
			l.logger.Warn("cache write failed", "location", location, "error", err)
		}
	}
	return text, nil
}

// Cache drivers accepted by OpenStore.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// OpenStore opens the cache backend named by driver. The "none" driver
// returns a nil Store.
func OpenStore(ctx context.Context, driver, sqlitePath, postgresDSN string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, sqlitePath)
	case DriverPostgres:
		if postgresDSN == "" {
			return nil, fmt.Errorf("postgres cache driver requires a DSN")
		}
		return NewPostgresStore(ctx, postgresDSN)
	case DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
}
