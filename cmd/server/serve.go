package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// httpServer is the part of web.Server that serve drives.
type httpServer interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// shutdownSteps run in order once the server stops accepting work.
type shutdownSteps struct {
	// drain waits for in-flight source fetches.
	drain func(context.Context) error
	// cleanup releases the cache store and anything else the app holds.
	cleanup func(context.Context) error
}

// serve runs srv until ctx is cancelled or Start fails, then shuts down:
// drain fetches, stop the HTTP server, release resources. It returns only
// after every step has finished or the shutdown timeout has expired.
func serve(ctx context.Context, srv httpServer, addr string, timeout time.Duration, steps shutdownSteps) error {
	startErr := make(chan error, 1)
	go func() {
		startErr <- srv.Start(addr)
	}()

	var err error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err = <-startErr:
		startErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if steps.drain != nil {
		if derr := steps.drain(shutdownCtx); derr != nil {
			slog.Warn("source fetches did not drain", "error", derr)
		}
	}
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		slog.Error("shutdown error", "error", serr)
	}
	if steps.cleanup != nil {
		if cerr := steps.cleanup(shutdownCtx); cerr != nil {
			slog.Warn("cleanup did not complete", "error", cerr)
		}
	}

	if startErr != nil {
		err = <-startErr
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
