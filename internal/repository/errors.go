package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist. It is
	// authoritative: resilient readers must not fall back to a snapshot
	// for it.
	ErrNotFound = errors.New("entity not found")

	// ErrUnavailable is returned when the store cannot be reached and no
	// last-known snapshot exists either.
	ErrUnavailable = errors.New("store unavailable")

	// ErrConflict is returned when a conditional insert loses to an
	// existing row, e.g. a second IN_PROGRESS trip for the same driver.
	ErrConflict = errors.New("conflicting row exists")
)
