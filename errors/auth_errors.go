// errors/auth_errors.go
package errors

import "errors"

var (
	// ErrUnauthenticated covers every credential failure: missing, malformed,
	// expired, revoked, bad signature, or a subject that no longer exists.
	// Callers must not be able to tell which check tripped.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is a role or membership denial for a valid identity.
	ErrForbidden = errors.New("forbidden")

	// ErrTokenConflict is returned to the loser of a refresh-token rotation race.
	ErrTokenConflict = errors.New("refresh token already rotated")

	// ErrCacheUnavailable means the cache store could not be reached within its
	// operation timeout.
	ErrCacheUnavailable = errors.New("cache store unavailable")
)
