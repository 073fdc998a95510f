package backend

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hallpass-io/hallpass/internal/metrics"
)

// Directory is the in-process view of the relay fleet, fed by heartbeat
// ingestion. Each backend's entry is an atomic pointer that only its own
// heartbeats swap, so snapshot reads never block on updates to unrelated
// backends; the map-level mutex is held only when a backend is first seen.
//
// Staleness is evaluated lazily at read time: an entry whose last heartbeat
// is older than the timeout is reported Unreachable without any background
// mutation of the stored value.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*atomic.Pointer[Info]

	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithDirectoryClock overrides the directory's time source.
func WithDirectoryClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) { d.now = now }
}

// NewDirectory creates a directory that treats backends silent for longer
// than heartbeatTimeout as unreachable.
func NewDirectory(heartbeatTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics, opts ...DirectoryOption) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{
		entries: make(map[string]*atomic.Pointer[Info]),
		timeout: heartbeatTimeout,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ingest applies one heartbeat. An Active heartbeat always re-registers the
// backend; otherwise the reported status must not step backwards from the
// one on record. Regressive statuses are dropped, but the heartbeat still
// refreshes address, capacity, and liveness.
func (d *Directory) Ingest(hb Heartbeat) error {
	if hb.BackendID == "" || !hb.Status.Valid() {
		return ErrInvalidHeartbeat
	}

	slot := d.slot(hb.BackendID)
	now := d.now().UTC()

	prev := slot.Load()
	status := hb.Status
	if prev != nil && status != StatusActive && status.rank() < prev.Status.rank() {
		d.logger.Debug("ignoring status regression",
			"backend_id", hb.BackendID,
			"reported", status,
			"current", prev.Status)
		status = prev.Status
	}

	slot.Store(&Info{
		ID:              hb.BackendID,
		Address:         hb.Address,
		CapacityScore:   hb.CapacityScore,
		LastHeartbeatAt: now,
		Status:          status,
	})

	d.metrics.SetActiveBackends(d.countActive(now))
	return nil
}

// Snapshot returns a point-in-time copy of all known backends with lazy
// staleness applied.
func (d *Directory) Snapshot() []Info {
	now := d.now().UTC()

	d.mu.RLock()
	slots := make([]*atomic.Pointer[Info], 0, len(d.entries))
	for _, slot := range d.entries {
		slots = append(slots, slot)
	}
	d.mu.RUnlock()

	infos := make([]Info, 0, len(slots))
	for _, slot := range slots {
		info := slot.Load()
		if info == nil {
			continue
		}
		infos = append(infos, d.effective(*info, now))
	}
	return infos
}

// Get returns the backend's current view, if known.
func (d *Directory) Get(backendID string) (Info, bool) {
	d.mu.RLock()
	slot, ok := d.entries[backendID]
	d.mu.RUnlock()
	if !ok {
		return Info{}, false
	}
	info := slot.Load()
	if info == nil {
		return Info{}, false
	}
	return d.effective(*info, d.now().UTC()), true
}

// effective overlays lazy staleness on a stored entry.
func (d *Directory) effective(info Info, now time.Time) Info {
	if d.timeout > 0 && now.Sub(info.LastHeartbeatAt) > d.timeout {
		info.Status = StatusUnreachable
	}
	return info
}

func (d *Directory) slot(backendID string) *atomic.Pointer[Info] {
	d.mu.RLock()
	slot, ok := d.entries[backendID]
	d.mu.RUnlock()
	if ok {
		return slot
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if slot, ok = d.entries[backendID]; ok {
		return slot
	}
	slot = &atomic.Pointer[Info]{}
	d.entries[backendID] = slot
	return slot
}

func (d *Directory) countActive(now time.Time) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, slot := range d.entries {
		if info := slot.Load(); info != nil && d.effective(*info, now).Status == StatusActive {
			n++
		}
	}
	return n
}
