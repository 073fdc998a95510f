package call

import "errors"

var (
	// ErrNotFound indicates no record exists for the call ID.
	ErrNotFound = errors.New("call not found")
	// ErrStoreUnavailable indicates the store kept failing after the retry
	// budget was exhausted. It is the only caller-retryable condition.
	ErrStoreUnavailable = errors.New("call store unavailable")
)
