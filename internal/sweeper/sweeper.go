// Package sweeper reclaims call records that have gone inactive. Removal is
// conditional on the generation observed during the scan, so a call that is
// touched or recreated mid-pass is never lost.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hallpass-io/hallpass/internal/domain/call"
	"github.com/hallpass-io/hallpass/internal/metrics"
)

// Registry is the slice of the call registry the sweeper needs.
type Registry interface {
	ListInactive(ctx context.Context, cutoff time.Time, limit int) ([]call.Record, error)
	Remove(ctx context.Context, callID string, expectedGeneration int64) (bool, error)
}

// Sweeper runs periodic single-instance reclaim passes. Overlapping passes
// are skipped, not queued: if a pass is still running when the ticker
// fires, that tick is dropped.
type Sweeper struct {
	registry  Registry
	interval  time.Duration
	threshold time.Duration
	batch     int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	passMu sync.Mutex
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the sweeper's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a sweeper that removes records untouched for longer than
// threshold, scanning every interval in batches of batch records.
func New(registry Registry, interval, threshold time.Duration, batch int, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if batch <= 0 {
		batch = 100
	}
	s := &Sweeper{
		registry:  registry,
		interval:  interval,
		threshold: threshold,
		batch:     batch,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks, sweeping every interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval, "threshold", s.threshold)
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		}
	}
}

// Sweep performs one reclaim pass. It returns the number of records
// removed; a pass that finds another pass in flight returns immediately.
func (s *Sweeper) Sweep(ctx context.Context) int {
	if !s.passMu.TryLock() {
		s.logger.Debug("sweep already in progress, skipping")
		return 0
	}
	defer s.passMu.Unlock()

	cutoff := s.now().UTC().Add(-s.threshold)
	records, err := s.registry.ListInactive(ctx, cutoff, s.batch)
	if err != nil {
		s.logger.Warn("sweep scan failed", "error", err)
		return 0
	}

	removed := 0
	for _, rec := range records {
		ok, err := s.registry.Remove(ctx, rec.CallID, rec.Generation)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return removed
			}
			s.logger.Warn("sweep removal failed", "call_id", rec.CallID, "error", err)
			continue
		}
		if !ok {
			// Touched or recreated since the scan; expected, not retried
			// this pass.
			s.logger.Debug("record superseded before removal", "call_id", rec.CallID)
			continue
		}
		s.metrics.SweeperRemoval()
		s.logger.Info("reclaimed inactive call",
			"call_id", rec.CallID,
			"generation", rec.Generation,
			"last_active_at", rec.LastActiveAt)
		removed++
	}
	return removed
}
