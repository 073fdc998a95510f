package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hallpass-io/hallpass/internal/metrics"
)

// RetryPolicy bounds retries against the store for transient failures.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseBackoff is the delay before the first retry; it doubles on each
	// subsequent retry.
	BaseBackoff time.Duration
}

// DefaultRetryPolicy is used when an empty policy is supplied.
var DefaultRetryPolicy = RetryPolicy{Attempts: 4, BaseBackoff: 50 * time.Millisecond}

// Registry owns the CallRecord lifecycle against the store. All mutation of
// call records flows through its conditional operations; creation races
// between concurrent callers are resolved by the store, not by in-process
// locking.
type Registry struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	retry   RetryPolicy
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a call registry backed by the given store.
func NewRegistry(store Store, retry RetryPolicy, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Registry {
	if retry.Attempts <= 0 {
		retry = DefaultRetryPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:   store,
		logger:  logger,
		metrics: m,
		retry:   retry,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the record for callID, creating it with the candidate
// backend if absent. Under concurrent creation all callers converge on the
// single record whose insert won the store's atomic race; the losing
// candidates are discarded. The returned bool reports whether this caller
// created the record.
func (r *Registry) GetOrCreate(ctx context.Context, callID string, candidate Candidate) (*Record, bool, error) {
	attempted := false
	for {
		rec, err := r.get(ctx, callID)
		if err == nil {
			if attempted {
				r.metrics.RaceResolved()
			}
			return rec, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}

		floor, err := r.lastGeneration(ctx, callID)
		if err != nil {
			return nil, false, err
		}

		now := r.now().UTC()
		rec = &Record{
			CallID:         callID,
			BackendID:      candidate.BackendID,
			BackendAddress: candidate.BackendAddress,
			Generation:     floor + 1,
			CreatedAt:      now,
			LastActiveAt:   now,
		}

		created, err := r.putIfAbsent(ctx, rec)
		if err != nil {
			return nil, false, err
		}
		if created {
			r.metrics.CallCreated()
			r.logger.Info("call created",
				"call_id", callID,
				"backend_id", rec.BackendID,
				"generation", rec.Generation)
			return rec, true, nil
		}

		// Lost the insert race (or the generation floor moved under us).
		// Loop to read back the winner.
		attempted = true
	}
}

// Get returns the current record for callID or ErrNotFound.
func (r *Registry) Get(ctx context.Context, callID string) (*Record, error) {
	return r.get(ctx, callID)
}

// Touch extends the record's activity window and, when joined is set, bumps
// the participant estimate. Failures are logged and swallowed; activity
// extension is best-effort.
func (r *Registry) Touch(ctx context.Context, callID string, joined bool) {
	var delta int64
	if joined {
		delta = 1
	}
	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.store.Touch(ctx, callID, r.now().UTC(), delta)
	})
	if err != nil {
		r.logger.Warn("touch failed", "call_id", callID, "error", err)
	}
}

// Remove conditionally deletes the record for callID. It succeeds only if
// the stored generation still equals expectedGeneration; a false return
// means the record was absent or already superseded, which is a benign
// outcome for callers reacting to stale observations.
func (r *Registry) Remove(ctx context.Context, callID string, expectedGeneration int64) (bool, error) {
	var removed bool
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		removed, err = r.store.DeleteIfGeneration(ctx, callID, expectedGeneration)
		return err
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// ListInactive returns records whose last activity predates the cutoff.
func (r *Registry) ListInactive(ctx context.Context, cutoff time.Time, limit int) ([]Record, error) {
	var recs []Record
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		recs, err = r.store.ListInactiveBefore(ctx, cutoff, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *Registry) get(ctx context.Context, callID string) (*Record, error) {
	var rec *Record
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		rec, err = r.store.Get(ctx, callID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Registry) lastGeneration(ctx context.Context, callID string) (int64, error) {
	var gen int64
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		gen, err = r.store.LastGeneration(ctx, callID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return gen, nil
}

func (r *Registry) putIfAbsent(ctx context.Context, rec *Record) (bool, error) {
	var created bool
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		created, err = r.store.PutIfAbsent(ctx, rec)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// withRetry runs op, retrying transient store failures with bounded
// exponential backoff. ErrNotFound passes through untouched; exhaustion
// surfaces as ErrStoreUnavailable wrapping the last failure.
func (r *Registry) withRetry(ctx context.Context, op func(context.Context) error) error {
	backoff := r.retry.BaseBackoff
	var last error
	for attempt := 1; attempt <= r.retry.Attempts; attempt++ {
		err := op(ctx)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		last = err
		if attempt == r.retry.Attempts {
			break
		}
		r.logger.Debug("store operation failed, retrying",
			"attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, last)
}
