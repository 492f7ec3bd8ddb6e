package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/nurserymap/internal/metrics"
	"github.com/JonMunkholm/nurserymap/internal/tabular"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultRefreshTimeout bounds a full fetch, parse and merge cycle.
const DefaultRefreshTimeout = 5 * time.Minute

// SourceLoader returns the decoded text stored at a location.
type SourceLoader interface {
	Load(ctx context.Context, location, encoding string) (string, error)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	AvailabilityLocation string
	AvailabilityEncoding string

	Weekdays       []string
	OpenMarkers    []string
	ParseWorkers   int
	RefreshTimeout time.Duration
}

// RefreshStatus reports the outcome of the most recent refreshes.
type RefreshStatus struct {
	Running     bool      `json:"running"`
	LastAttempt time.Time `json:"lastAttempt,omitzero"`
	LastSuccess time.Time `json:"lastSuccess,omitzero"`
	LastError   string    `json:"lastError,omitempty"`
}

// Service owns the published snapshot and rebuilds it from the configured
// sources. Readers call Snapshot and never observe a partial merge.
type Service struct {
	loader   SourceLoader
	registry *Registry
	limiter  *FetchLimiter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	merger   Merger
	cfg      ServiceConfig
	now      func() time.Time

	current atomic.Pointer[Snapshot]
	running atomic.Bool

	refreshMu sync.Mutex

	statusMu sync.RWMutex
	status   RefreshStatus
}

// Option customises a Service.
type Option func(*Service)

// WithLimiter bounds concurrent source fetches.
func WithLimiter(l *FetchLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics records refresh instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. No snapshot is published until the first
// Refresh completes.
func NewService(loader SourceLoader, registry *Registry, cfg ServiceConfig, opts ...Option) *Service {
	if registry == nil {
		registry = NewRegistry()
	}
	cfg.Weekdays = weekdaysOrDefault(cfg.Weekdays)
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}

	s := &Service{
		loader:   loader,
		registry: registry,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewFetchLimiter(DefaultMaxConcurrentFetches, DefaultMaxFetchWait)
	}
	s.merger = Merger{
		Weekdays: cfg.Weekdays,
		IsOpen:   NewMarkerSet(cfg.OpenMarkers...),
		Logger:   s.logger,
	}
	return s
}

// Snapshot returns the published snapshot, or nil before the first refresh.
func (s *Service) Snapshot() *Snapshot {
	return s.current.Load()
}

// Weekdays returns the configured weekday list.
func (s *Service) Weekdays() []string {
	return s.cfg.Weekdays
}

// Sources returns the registered base sources in merge order.
func (s *Service) Sources() []SourceDefinition {
	return s.registry.All()
}

// Status returns the refresh status.
func (s *Service) Status() RefreshStatus {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()
	st.Running = s.running.Load()
	return st
}

// Limiter exposes the fetch limiter for monitoring.
func (s *Service) Limiter() *FetchLimiter {
	return s.limiter
}

// Facility returns one facility from the published snapshot.
func (s *Service) Facility(no string) (*Facility, error) {
	snap := s.Snapshot()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	f, ok := snap.Facility(no)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFacilityNotFound, no)
	}
	return f, nil
}

// Refresh loads every source, merges them and publishes the new snapshot.
//
// Only one refresh runs at a time; concurrent callers get
// ErrRefreshInProgress. On failure the previous snapshot stays published,
// or an empty one is published if none exists yet.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	if !s.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RefreshTimeout)
	defer cancel()

	log := s.logger.With("trigger", TriggerFromContext(ctx))
	start := time.Now()
	log.Info("refresh started", "sources", s.registry.Len()+1)

	snap, err := s.build(ctx, log)
	elapsed := time.Since(start)

	s.statusMu.Lock()
	s.status.LastAttempt = s.now()
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.LastSuccess = s.status.LastAttempt
		s.status.LastError = ""
	}
	s.statusMu.Unlock()

	if err != nil {
		s.metrics.ObserveRefresh("error", elapsed)
		if s.current.Load() == nil {
			s.current.Store(NewSnapshot(uuid.NewString(), s.now(), s.cfg.Weekdays, MergeResult{}))
		}
		log.Error("refresh failed",
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		return nil, err
	}

	s.current.Store(snap)
	s.metrics.ObserveRefresh("ok", elapsed)
	s.metrics.SetFacilities(snap.Len())
	for reason, n := range snap.Stats.Skipped {
		s.metrics.AddSkipped(string(reason), n)
	}

	log.Info("refresh completed",
		"snapshot", snap.ID,
		"facilities", snap.Len(),
		"source_errors", len(snap.Stats.SourceErrors),
		"duration_ms", elapsed.Milliseconds(),
	)
	return snap, nil
}

// build fetches and parses every source in parallel, then merges after the
// barrier.
func (s *Service) build(ctx context.Context, log *slog.Logger) (*Snapshot, error) {
	if s.cfg.AvailabilityLocation == "" {
		return nil, errors.New("availability source: empty location")
	}

	defs := s.registry.All()
	texts := make([]string, len(defs)+1)
	loadErrs := make([]string, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := s.load(gctx, s.cfg.AvailabilityLocation, s.cfg.AvailabilityEncoding)
		if err != nil {
			return fmt.Errorf("availability source: %w", err)
		}
		texts[0] = text
		return nil
	})
	for i, def := range defs {
		g.Go(func() error {
			text, err := s.load(gctx, def.Location, def.Encoding)
			if err != nil {
				// A missing base registry degrades the result; it does not
				// fail the refresh.
				log.Warn("base source unavailable",
					"source", def.Key,
					"location", def.Location,
					"error", err,
				)
				loadErrs[i] = fmt.Sprintf("%s: %v", def.Key, err)
				return nil
			}
			texts[i+1] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	datasets := tabular.ParseAll(ctx, texts, s.cfg.ParseWorkers)

	bases := make([]BaseDataset, len(defs))
	for i, def := range defs {
		bases[i] = BaseDataset{Dataset: datasets[i+1], Source: def.Descriptor()}
	}

	res, err := s.merger.Merge(bases, datasets[0])
	if err != nil {
		return nil, err
	}

	var sourceErrs []string
	for _, e := range loadErrs {
		if e != "" {
			sourceErrs = append(sourceErrs, e)
		}
	}
	res.Stats.SourceErrors = append(sourceErrs, res.Stats.SourceErrors...)

	return NewSnapshot(uuid.NewString(), s.now(), s.cfg.Weekdays, res), nil
}

func (s *Service) load(ctx context.Context, location, encoding string) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer s.limiter.Release()
	return s.loader.Load(ctx, location, encoding)
}

// Shutdown waits for in-flight fetches to release their slots.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
