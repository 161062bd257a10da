package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	// ErrNotFound is returned when a referenced user, chat, message or
	// connection does not exist.
	ErrNotFound = errors.New("requested resource not found")

	// ErrAlreadyExists is returned when a create collides with an existing
	// record, e.g. a reused live connection ID or a duplicate chat pair.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrUnauthorized is returned when a token is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned on a failed sign-in attempt.
	ErrInvalidCredentials = errors.New("invalid credentials provided")

	// ErrStaleConnection is returned by the delivery transport when the
	// remote end of a connection is already gone. Callers log and swallow
	// it; registry cleanup is the disconnect handler's job, not the sender's.
	ErrStaleConnection = errors.New("stale connection")
)
