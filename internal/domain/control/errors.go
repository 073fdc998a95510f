package control

import "errors"

var (
	// ErrInvalidCallID indicates a malformed call identifier.
	ErrInvalidCallID = errors.New("invalid call id")
	// ErrInvalidUserID indicates a malformed user identifier.
	ErrInvalidUserID = errors.New("invalid user id")
)
