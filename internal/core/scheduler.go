package core

// scheduler.go runs periodic background refreshes.
//
// The scheduler is long-running and context-aware for graceful shutdown. A
// failed refresh is logged and the previous snapshot stays published; the
// scheduler never stops because of one bad cycle.

import (
	"context"
	"errors"
	"time"
)

// StartRefreshScheduler refreshes immediately, then every interval, until
// ctx is cancelled. A non-positive interval runs one refresh and returns.
func (s *Service) StartRefreshScheduler(ctx context.Context, interval time.Duration) {
	ctx = ContextWithTrigger(ctx, TriggerScheduler)
	s.logger.Info("refresh scheduler started", "interval", interval.String())

	s.runRefreshJob(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.runRefreshJob(ctx)
		}
	}
}

func (s *Service) runRefreshJob(ctx context.Context) {
	_, err := s.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInProgress):
		s.logger.Debug("scheduled refresh skipped, another refresh is running")
	case ctx.Err() != nil:
		s.logger.Debug("scheduled refresh interrupted by shutdown")
	}
	// Other failures were already logged by Refresh.
}
