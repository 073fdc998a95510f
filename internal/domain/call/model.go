package call

import "time"

// Record binds a call identifier to the relay backend hosting it.
// At most one record exists per call ID at any instant; Generation
// distinguishes successive incarnations of the same ID and only ever
// increases across create/remove/recreate cycles.
type Record struct {
	CallID         string    `json:"call_id"`
	BackendID      string    `json:"backend_id"`
	BackendAddress string    `json:"backend_address"`
	Generation     int64     `json:"generation"`
	CreatedAt      time.Time `json:"created_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
	// Participants is an eventually consistent estimate, informational only.
	Participants int64 `json:"participants"`
}

// Candidate is the backend proposed for a call that does not exist yet.
// It is discarded when another creator wins the insert race.
type Candidate struct {
	BackendID      string
	BackendAddress string
}
