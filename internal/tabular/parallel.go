package tabular

// parallel.go offloads parsing of independent source texts to a bounded
// worker pool.
//
// Parsing is a pure function of its input, so the pool is purely an
// optimisation: when it is unavailable or any worker fails, every text is
// re-parsed synchronously and the caller receives exactly the same datasets.

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ParseFunc is the parse implementation used by the worker pool.
// Tests swap it to simulate worker failures.
var ParseFunc = Parse

// ParseAll parses every text and returns datasets in input order.
//
// Up to workers texts are parsed concurrently. A non-positive workers value
// means no pool is available and all texts are parsed inline. ParseAll only
// returns once every parse has finished.
func ParseAll(ctx context.Context, texts []string, workers int) []Dataset {
	if len(texts) == 0 {
		return []Dataset{}
	}
	if workers <= 0 {
		return parseSync(texts)
	}

	out, err := parsePool(ctx, texts, workers)
	if err != nil {
		slog.Warn("background parse failed, falling back to synchronous parse",
			"texts", len(texts),
			"error", err,
		)
		return parseSync(texts)
	}
	return out
}

func parsePool(ctx context.Context, texts []string, workers int) (out []Dataset, err error) {
	out = make([]Dataset, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, text := range texts {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("parse worker %d panicked: %v", i, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = ParseFunc(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseSync(texts []string) []Dataset {
	out := make([]Dataset, len(texts))
	for i, text := range texts {
		out[i] = Parse(text)
	}
	return out
}
