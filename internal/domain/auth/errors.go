package auth

import "errors"

var (
	// ErrExpired indicates the credential's validity window has passed.
	ErrExpired = errors.New("credential expired")
	// ErrSignatureMismatch indicates the credential was not signed with
	// the process secret, or was tampered with.
	ErrSignatureMismatch = errors.New("credential signature mismatch")
	// ErrGenerationMismatch indicates the credential was minted for a
	// superseded incarnation of the call. It fires regardless of
	// signature validity.
	ErrGenerationMismatch = errors.New("credential generation mismatch")
	// ErrMalformedToken indicates a token that does not parse.
	ErrMalformedToken = errors.New("malformed credential token")
	// ErrWeakSecret indicates the configured signing secret is too short.
	ErrWeakSecret = errors.New("signing secret too short")
)
