package backend

import "errors"

var (
	// ErrNoCapacity indicates no eligible backend exists for a new call.
	ErrNoCapacity = errors.New("no backend capacity available")
	// ErrInvalidHeartbeat indicates a heartbeat with a missing ID or
	// unknown status.
	ErrInvalidHeartbeat = errors.New("invalid heartbeat")
)
