package repository

import (
	"context"
	"time"

	"schooltrack/internal/domain"
)

// TripRepository defines the persistence operations for trips and their
// per-student boarding state rows.
//
// All state-changing operations are conditional writes: they only apply when
// the stored row is in the expected prior state, so concurrent callers
// coordinate through the store rather than through shared memory.
type TripRepository interface {
	// Create persists a new trip along with a WAITING boarding row for
	// every student on the route. The two writes are atomic.
	Create(ctx context.Context, trip *domain.Trip, studentIDs []string) error

	// GetByID retrieves a trip by ID, including its boarding sets.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetActiveByDriverID retrieves the driver's IN_PROGRESS trip.
	// Returns nil if no active trip exists.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error)

	// ListActiveByAdminID retrieves all IN_PROGRESS trips owned by an admin.
	ListActiveByAdminID(ctx context.Context, adminID string) ([]*domain.Trip, error)

	// Complete transitions an IN_PROGRESS trip to the given terminal status
	// and returns the updated trip. Returns ErrNotFound when no IN_PROGRESS
	// row with that id exists.
	Complete(ctx context.Context, id string, status domain.TripStatus, endedAt time.Time, reason string) (*domain.Trip, error)

	// UpdateLocation writes the trip's current location. Applied only while
	// the trip is IN_PROGRESS; returns false when the write did not apply.
	UpdateLocation(ctx context.Context, id string, pt domain.GeoPoint, at time.Time) (bool, error)

	// UpdateWeather replaces the trip's weather snapshot. Applied only
	// while the trip is IN_PROGRESS.
	UpdateWeather(ctx context.Context, id string, w domain.WeatherSnapshot) (bool, error)

	// SetBoardingState moves one student's boarding row from the expected
	// prior state to the next one. Returns false when the row was not in
	// the expected state (already moved, or unknown student).
	SetBoardingState(ctx context.Context, tripID, studentID string, from, to domain.BoardingState) (bool, error)

	// GetBoardingState returns one student's boarding state for a trip.
	// Returns ErrNotFound when the student has no row on the trip.
	GetBoardingState(ctx context.Context, tripID, studentID string) (domain.BoardingState, error)

	// ListBoardingStates returns the boarding state of every student on
	// the trip, keyed by student id.
	ListBoardingStates(ctx context.Context, tripID string) (map[string]domain.BoardingState, error)
}
