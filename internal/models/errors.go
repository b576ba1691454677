package models

import "errors"

// Domain errors shared across store, services and handlers. Repositories
// map driver-level failures (pg unique violations, no-rows) onto these so
// callers never inspect SQLSTATEs.
var (
	// ErrNotFound means the referenced event or ticket session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate means a uniqueness constraint was violated.
	ErrDuplicate = errors.New("duplicate key")
	// ErrFull means the event has reached its participant capacity.
	ErrFull = errors.New("event full")
	// ErrClosed means the event no longer accepts registrations.
	ErrClosed = errors.New("event closed")
	// ErrForbidden means the actor is not authorized for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyOpen means the owner already has an open ticket session.
	ErrAlreadyOpen = errors.New("ticket already open")
)
