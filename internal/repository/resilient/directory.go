// Package resilient decorates the directory repositories with read-through
// snapshot fallback: reference data reads survive a store outage by serving
// the last value successfully read.
package resilient

import (
	"context"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
	"schooltrack/internal/resilience"
)

// StudentRepository wraps a student repository with snapshot fallback.
type StudentRepository struct {
	inner    repository.StudentRepository
	accessor *resilience.Accessor
}

// NewStudentRepository creates a resilient student repository.
func NewStudentRepository(inner repository.StudentRepository, accessor *resilience.Accessor) *StudentRepository {
	return &StudentRepository{inner: inner, accessor: accessor}
}

func (r *StudentRepository) GetByID(ctx context.Context, id string) (*domain.Student, error) {
	return resilience.Read(ctx, r.accessor, "student:"+id, func(ctx context.Context) (*domain.Student, error) {
		return r.inner.GetByID(ctx, id)
	})
}

func (r *StudentRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.Student, error) {
	return resilience.Read(ctx, r.accessor, "students:driver:"+driverID, func(ctx context.Context) ([]*domain.Student, error) {
		return r.inner.ListByDriverID(ctx, driverID)
	})
}

func (r *StudentRepository) ListByParentID(ctx context.Context, parentID string) ([]*domain.Student, error) {
	return resilience.Read(ctx, r.accessor, "students:parent:"+parentID, func(ctx context.Context) ([]*domain.Student, error) {
		return r.inner.ListByParentID(ctx, parentID)
	})
}

// RouteRepository wraps a route repository with snapshot fallback.
type RouteRepository struct {
	inner    repository.RouteRepository
	accessor *resilience.Accessor
}

// NewRouteRepository creates a resilient route repository.
func NewRouteRepository(inner repository.RouteRepository, accessor *resilience.Accessor) *RouteRepository {
	return &RouteRepository{inner: inner, accessor: accessor}
}

func (r *RouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	return resilience.Read(ctx, r.accessor, "route:"+id, func(ctx context.Context) (*domain.Route, error) {
		return r.inner.GetByID(ctx, id)
	})
}

func (r *RouteRepository) GetByDriverID(ctx context.Context, driverID string) (*domain.Route, error) {
	return resilience.Read(ctx, r.accessor, "route:driver:"+driverID, func(ctx context.Context) (*domain.Route, error) {
		return r.inner.GetByDriverID(ctx, driverID)
	})
}

// UserRepository wraps a user repository with snapshot fallback.
type UserRepository struct {
	inner    repository.UserRepository
	accessor *resilience.Accessor
}

// NewUserRepository creates a resilient user repository.
func NewUserRepository(inner repository.UserRepository, accessor *resilience.Accessor) *UserRepository {
	return &UserRepository{inner: inner, accessor: accessor}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return resilience.Read(ctx, r.accessor, "user:"+id, func(ctx context.Context) (*domain.User, error) {
		return r.inner.GetByID(ctx, id)
	})
}

var (
	_ repository.StudentRepository = (*StudentRepository)(nil)
	_ repository.RouteRepository   = (*RouteRepository)(nil)
	_ repository.UserRepository    = (*UserRepository)(nil)
)
