package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/nurserymap/internal/app"
	"github.com/JonMunkholm/nurserymap/internal/config"
	"github.com/JonMunkholm/nurserymap/internal/logging"
	"github.com/JonMunkholm/nurserymap/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	for _, def := range a.Registry.All() {
		slog.Debug("base source registered", "key", def.Key, "location", def.Location)
	}
	slog.Info("sources registered",
		"base", a.Registry.Len(),
		"availability", cfg.Sources.AvailabilityURL,
		"cache_driver", cfg.Cache.Driver,
	)

	server := web.NewServer(a.Service, cfg, a.Metrics)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background refresh: the first build runs immediately.
	go a.Service.StartRefreshScheduler(ctx, cfg.Refresh.Interval)

	fetches := a.Service.Limiter()
	err = serve(ctx, server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout, shutdownSteps{
		drain: func(ctx context.Context) error {
			if st := fetches.Status(); st.Active > 0 {
				slog.Info("waiting for source fetches to finish", "active", st.Active)
			}
			return a.Service.Shutdown(ctx)
		},
		cleanup: a.Close,
	})
	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
