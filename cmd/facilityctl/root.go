package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/nurserymap/internal/app"
	"github.com/JonMunkholm/nurserymap/internal/config"
	"github.com/JonMunkholm/nurserymap/internal/core"
	"github.com/JonMunkholm/nurserymap/internal/logging"
	"github.com/JonMunkholm/nurserymap/internal/source"
)

// sourceOptions are the flags shared by every subcommand.
type sourceOptions struct {
	availability string
	encoding     string
	bases        []string
	baseEncoding string
	weekdays     []string
	markers      []string
	cacheDriver  string
	cachePath    string
	cacheTTL     time.Duration
	timeout      time.Duration
	logLevel     string
}

func newRootCmd() *cobra.Command {
	var opts sourceOptions

	cmd := &cobra.Command{
		Use:           "facilityctl",
		Short:         "Build and query the childcare facility collection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.availability, "availability", "", "Availability dataset location (required)")
	pf.StringVar(&opts.encoding, "encoding", source.DefaultEncoding, "Availability dataset encoding")
	pf.StringArrayVar(&opts.bases, "base", nil, "Base registry as key=location (repeatable)")
	pf.StringVar(&opts.baseEncoding, "base-encoding", source.DefaultEncoding, "Base registry encoding")
	pf.StringSliceVar(&opts.weekdays, "weekdays", core.DefaultWeekdays, "Weekday names probed in slot columns")
	pf.StringSliceVar(&opts.markers, "open-markers", core.DefaultOpenMarkers, "Cell values meaning accepting")
	pf.StringVar(&opts.cacheDriver, "cache", source.DriverNone, "Cache driver: none, memory, sqlite")
	pf.StringVar(&opts.cachePath, "cache-path", "data/source-cache.db", "SQLite cache file")
	pf.DurationVar(&opts.cacheTTL, "cache-ttl", source.DefaultCacheTTL, "Cache entry lifetime")
	pf.DurationVar(&opts.timeout, "timeout", core.DefaultRefreshTimeout, "Build timeout")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")
	_ = cmd.MarkPersistentFlagRequired("availability")

	cmd.AddCommand(newBuildCmd(&opts), newStatusCmd(&opts))
	return cmd
}

// config maps the flags onto the server configuration so both binaries
// share the same wiring.
func (o *sourceOptions) config() *config.Config {
	return &config.Config{
		Sources: config.SourcesConfig{
			AvailabilityURL:      o.availability,
			AvailabilityEncoding: o.encoding,
			Base:                 o.bases,
			BaseEncoding:         o.baseEncoding,
			Weekdays:             o.weekdays,
			OpenMarkers:          o.markers,
			ParseWorkers:         4,
			UserAgent:            "facilityctl/1.0",
			MaxBytes:             source.DefaultMaxBytes,
		},
		Cache: config.CacheConfig{
			Driver:     o.cacheDriver,
			TTL:        o.cacheTTL,
			SQLitePath: o.cachePath,
		},
		S3: config.S3Config{Region: os.Getenv("AWS_REGION")},
		Refresh: config.RefreshConfig{
			Timeout:              o.timeout,
			MaxConcurrentFetches: core.DefaultMaxConcurrentFetches,
			MaxFetchWait:         core.DefaultMaxFetchWait,
		},
	}
}

// build runs one refresh and returns the snapshot.
func (o *sourceOptions) build(ctx context.Context, stderr io.Writer) (*core.Snapshot, error) {
	logger := logging.New(stderr, o.logLevel, "text")
	slog.SetDefault(logger)

	a, err := app.Build(ctx, o.config(), logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close(context.Background()) }()

	snap, err := a.Service.Refresh(core.ContextWithTrigger(ctx, core.TriggerCLI))
	if err != nil {
		um := core.MapError(err)
		return nil, fmt.Errorf("%s (%s): %w", um.Message, um.Code, err)
	}
	return snap, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
