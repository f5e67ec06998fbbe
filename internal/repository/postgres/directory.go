package postgres

import (
	"context"
	"database/sql"
	"errors"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
)

// The directory repositories read reference data maintained by the
// management screens outside the core.

// StudentRepository is a PostgreSQL implementation of
// repository.StudentRepository.
type StudentRepository struct {
	q Querier
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{q: db}
}

const studentColumns = `id, full_name, grade, school, parent_id, driver_id, admin_id, home_lat, home_lng`

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*domain.Student, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id)

	student, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return student, nil
}

// ListByDriverID retrieves the students assigned to a driver.
func (r *StudentRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.Student, error) {
	return r.list(ctx, `SELECT `+studentColumns+` FROM students WHERE driver_id = $1 ORDER BY full_name`, driverID)
}

// ListByParentID retrieves a parent's students.
func (r *StudentRepository) ListByParentID(ctx context.Context, parentID string) ([]*domain.Student, error) {
	return r.list(ctx, `SELECT `+studentColumns+` FROM students WHERE parent_id = $1 ORDER BY full_name`, parentID)
}

func (r *StudentRepository) list(ctx context.Context, query string, arg any) ([]*domain.Student, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []*domain.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}

	return students, rows.Err()
}

func scanStudent(s scanner) (*domain.Student, error) {
	var student domain.Student

	if err := s.Scan(
		&student.ID,
		&student.FullName,
		&student.Grade,
		&student.School,
		&student.ParentID,
		&student.DriverID,
		&student.AdminID,
		&student.HomeLocation.Latitude,
		&student.HomeLocation.Longitude,
	); err != nil {
		return nil, err
	}

	return &student, nil
}

// RouteRepository is a PostgreSQL implementation of
// repository.RouteRepository.
type RouteRepository struct {
	q Querier
}

// NewRouteRepository creates a new PostgreSQL route repository.
func NewRouteRepository(db *sql.DB) *RouteRepository {
	return &RouteRepository{q: db}
}

// GetByID retrieves a route by ID, including its ordered stops.
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	return r.get(ctx, `SELECT id, name, driver_id, bus_id, admin_id FROM routes WHERE id = $1`, id)
}

// GetByDriverID returns the route assigned to a driver.
func (r *RouteRepository) GetByDriverID(ctx context.Context, driverID string) (*domain.Route, error) {
	return r.get(ctx, `SELECT id, name, driver_id, bus_id, admin_id FROM routes WHERE driver_id = $1 LIMIT 1`, driverID)
}

func (r *RouteRepository) get(ctx context.Context, query string, arg any) (*domain.Route, error) {
	var route domain.Route
	var busID sql.NullString

	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&route.ID,
		&route.Name,
		&route.DriverID,
		&busID,
		&route.AdminID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	route.BusID = busID.String

	rows, err := r.q.QueryContext(ctx, `
		SELECT student_id, lat, lng, estimated_time
		FROM route_stops WHERE route_id = $1 ORDER BY position`,
		route.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var stop domain.RouteStop
		if err := rows.Scan(
			&stop.StudentID,
			&stop.Location.Latitude,
			&stop.Location.Longitude,
			&stop.EstimatedTime,
		); err != nil {
			return nil, err
		}
		route.Stops = append(route.Stops, stop)
		route.Students = append(route.Students, stop.StudentID)
	}

	return &route, rows.Err()
}

// UserRepository is a PostgreSQL implementation of repository.UserRepository.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	var phone, adminID sql.NullString

	err := r.q.QueryRowContext(ctx, `
		SELECT id, email, display_name, role, approved, phone_number, admin_id
		FROM users WHERE id = $1`,
		id,
	).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.Approved,
		&phone,
		&adminID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	user.PhoneNumber = phone.String
	user.AdminID = adminID.String

	return &user, nil
}

// Ensure the directory repositories implement their interfaces.
var (
	_ repository.StudentRepository = (*StudentRepository)(nil)
	_ repository.RouteRepository   = (*RouteRepository)(nil)
	_ repository.UserRepository    = (*UserRepository)(nil)
)
