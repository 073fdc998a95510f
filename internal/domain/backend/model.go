package backend

import "time"

// Status is the lifecycle state of a relay node. Within a heartbeat
// lifetime transitions are monotonic (Active → Draining → Unreachable);
// leaving Unreachable requires a fresh heartbeat that re-registers the
// node as Active.
type Status string

const (
	StatusActive      Status = "active"
	StatusDraining    Status = "draining"
	StatusUnreachable Status = "unreachable"
)

// rank orders statuses for the monotonicity check. Higher never steps back
// to lower except through explicit re-registration.
func (s Status) rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusDraining:
		return 1
	case StatusUnreachable:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Info describes a relay node as last reported by its heartbeats.
// CapacityScore is load-derived; lower means more available.
type Info struct {
	ID              string    `json:"id"`
	Address         string    `json:"address"`
	CapacityScore   int       `json:"capacity_score"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
	Status          Status    `json:"status"`
}

// Heartbeat is the inbound report a relay node sends about itself.
type Heartbeat struct {
	BackendID     string
	Address       string
	CapacityScore int
	Status        Status
}
