// Package errs defines the error kinds shared across stores, services and
// handlers. Callers classify failures with errors.Is and map them to HTTP
// status codes or task outcomes.
package errs

import "errors"

var (
	// ErrConfigMissing marks an integration that is needed but whose
	// required settings are empty.
	ErrConfigMissing = errors.New("required configuration missing")

	// ErrUnavailable marks an external service that errored or timed out.
	// Integrations log it and return empty results; callers retry next tick.
	ErrUnavailable = errors.New("service unavailable")

	// ErrNotFound marks a failed entity lookup by id.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks duplicate usernames, duplicate profile names,
	// already-completed setup and similar collisions.
	ErrConflict = errors.New("conflict")

	// ErrForbidden marks access to another user's resource, non-admin use of
	// an admin endpoint, or a media-server token without music access.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalid marks schema mismatches and unknown operators, triggers or
	// actions.
	ErrInvalid = errors.New("invalid")
)
