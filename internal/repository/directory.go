package repository

import (
	"context"

	"schooltrack/internal/domain"
)

// The directory repositories expose the reference data the core consumes but
// does not own (students, routes, users). Management of these records lives
// outside the core; only reads are defined here.

// StudentRepository provides read-only access to student reference data.
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Student, error)
	ListByDriverID(ctx context.Context, driverID string) ([]*domain.Student, error)
	ListByParentID(ctx context.Context, parentID string) ([]*domain.Student, error)
}

// RouteRepository provides read-only access to route assignments.
type RouteRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Route, error)

	// GetByDriverID returns the route assigned to a driver, including its
	// ordered stops. Returns ErrNotFound when the driver has no route.
	GetByDriverID(ctx context.Context, driverID string) (*domain.Route, error)
}

// UserRepository provides read-only access to user reference data.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
