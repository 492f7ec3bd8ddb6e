// Package app assembles the service graph from configuration. It is shared
// by the HTTP server and the facilityctl command.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/nurserymap/internal/config"
	"github.com/JonMunkholm/nurserymap/internal/core"
	"github.com/JonMunkholm/nurserymap/internal/metrics"
	"github.com/JonMunkholm/nurserymap/internal/source"
)

// App holds the wired components.
type App struct {
	Service  *core.Service
	Registry *core.Registry
	Metrics  *metrics.Metrics
	Loader   *source.Loader

	cache *source.TextCache
}

// Build wires fetchers, the text cache, the source registry and the
// service from cfg. logger may be nil.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := metrics.New()

	registry, err := NewRegistry(cfg.Sources)
	if err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(ctx, cfg, registry, m)
	if err != nil {
		return nil, err
	}

	store, err := source.OpenStore(ctx, cfg.Cache.Driver, cfg.Cache.SQLitePath, cfg.Cache.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	var cache *source.TextCache
	if store != nil {
		cache = source.NewTextCache(store, cfg.Cache.TTL, logger, m)
	}

	loader := source.NewLoader(fetcher, cache, cfg.Sources.AvailabilityEncoding, logger)

	svc := core.NewService(loader, registry, core.ServiceConfig{
		AvailabilityLocation: cfg.Sources.AvailabilityURL,
		AvailabilityEncoding: cfg.Sources.AvailabilityEncoding,
		Weekdays:             cfg.Sources.Weekdays,
		OpenMarkers:          cfg.Sources.OpenMarkers,
		ParseWorkers:         cfg.Sources.ParseWorkers,
		RefreshTimeout:       cfg.Refresh.Timeout,
	},
		core.WithLimiter(core.NewFetchLimiter(cfg.Refresh.MaxConcurrentFetches, cfg.Refresh.MaxFetchWait)),
		core.WithMetrics(m),
		core.WithLogger(logger),
	)

	return &App{
		Service:  svc,
		Registry: registry,
		Metrics:  m,
		Loader:   loader,
		cache:    cache,
	}, nil
}

// NewRegistry registers every configured base source in order.
func NewRegistry(cfg config.SourcesConfig) (*core.Registry, error) {
	bases, err := cfg.BaseSources()
	if err != nil {
		return nil, err
	}
	reg := core.NewRegistry()
	for _, b := range bases {
		key, ok := core.ParseTypeKey(b.Key)
		if !ok {
			return nil, fmt.Errorf("BASE_SOURCES: %w: %q", core.ErrUnknownTypeKey, b.Key)
		}
		if err := reg.Register(core.SourceDefinition{
			Key:      key,
			Location: b.Location,
			Encoding: cfg.BaseEncoding,
		}); err != nil {
			return nil, fmt.Errorf("BASE_SOURCES: %w", err)
		}
	}
	return reg, nil
}

// newFetcher routes http(s), file and, when any source needs it, s3.
func newFetcher(ctx context.Context, cfg *config.Config, reg *core.Registry, m *metrics.Metrics) (*source.Mux, error) {
	mux := source.NewMux(m)
	mux.Handle(&source.HTTPFetcher{
		Client:    &http.Client{Timeout: cfg.Refresh.Timeout},
		UserAgent: cfg.Sources.UserAgent,
		MaxBytes:  cfg.Sources.MaxBytes,
	}, "http", "https")
	mux.Handle(&source.FileFetcher{MaxBytes: cfg.Sources.MaxBytes}, "file")

	if !usesS3(cfg.Sources.AvailabilityURL, reg) {
		return mux, nil
	}
	s3f, err := source.NewS3Fetcher(ctx, source.S3Config{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		PathStyle:       cfg.S3.PathStyle,
		MaxBytes:        cfg.Sources.MaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 fetcher: %w", err)
	}
	mux.Handle(s3f, "s3")
	return mux, nil
}

func usesS3(availability string, reg *core.Registry) bool {
	if source.Scheme(availability) == "s3" {
		return true
	}
	for _, d := range reg.All() {
		if source.Scheme(d.Location) == "s3" {
			return true
		}
	}
	return false
}

// Close waits for in-flight fetches and releases the cache backend.
func (a *App) Close(ctx context.Context) error {
	err := a.Service.Shutdown(ctx)
	if a.cache != nil {
		err = errors.Join(err, a.cache.Close())
	}
	return err
}
