package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
)

const tripColumns = `id, driver_id, driver_name, route_id, admin_id, status, start_time,
	end_time, cancel_reason, current_lat, current_lng, location_updated_at, weather`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
//
// Per-student boarding state lives in trip_students, one row per
// (trip, student). Every transition is a single conditional UPDATE, so two
// concurrent mutations of the same student serialize on the row and
// mutations of different students never touch each other's rows.
type TripRepository struct {
	db *sql.DB
	q  Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db, q: db}
}

// Create persists a new trip and seeds a WAITING boarding row per student,
// atomically. The insert is conditional on the driver having no IN_PROGRESS
// trip; a lost race returns repository.ErrConflict, so two concurrent starts
// for the same driver settle on one trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip, studentIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO trips (id, driver_id, driver_name, route_id, admin_id, status, start_time,
			end_time, cancel_reason, current_lat, current_lng, location_updated_at, weather)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		WHERE NOT EXISTS (
			SELECT 1 FROM trips WHERE driver_id = $2 AND status = $14
		)
	`

	var lat, lng sql.NullFloat64
	var locAt sql.NullTime
	if trip.CurrentLocation != nil {
		lat = sql.NullFloat64{Float64: trip.CurrentLocation.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: trip.CurrentLocation.Longitude, Valid: true}
		locAt = sql.NullTime{Time: trip.LocationUpdatedAt, Valid: true}
	}

	var weather []byte
	if trip.Weather != nil {
		if weather, err = json.Marshal(trip.Weather); err != nil {
			return err
		}
	}

	var result sql.Result
	if result, err = tx.ExecContext(ctx, query,
		trip.ID,
		trip.DriverID,
		trip.DriverName,
		trip.RouteID,
		trip.AdminID,
		trip.Status,
		trip.StartTime,
		sql.NullTime{},
		trip.CancelReason,
		lat,
		lng,
		locAt,
		weather,
		domain.TripStatusInProgress,
	); err != nil {
		return err
	}

	var inserted int64
	if inserted, err = result.RowsAffected(); err != nil {
		return err
	}
	if inserted == 0 {
		err = repository.ErrConflict
		return err
	}

	for _, studentID := range studentIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO trip_students (trip_id, student_id, state, updated_at) VALUES ($1, $2, $3, $4)`,
			trip.ID, studentID, domain.BoardingWaiting, trip.StartTime,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a trip by ID, including its boarding sets.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)

	trip, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if err := r.loadBoardingSets(ctx, trip); err != nil {
		return nil, err
	}

	return trip, nil
}

// GetActiveByDriverID retrieves the driver's IN_PROGRESS trip.
// Returns nil if no active trip exists.
func (r *TripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE driver_id = $1 AND status = $2 LIMIT 1`,
		driverID, domain.TripStatusInProgress,
	)

	trip, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadBoardingSets(ctx, trip); err != nil {
		return nil, err
	}

	return trip, nil
}

// ListActiveByAdminID retrieves all IN_PROGRESS trips owned by an admin.
func (r *TripRepository) ListActiveByAdminID(ctx context.Context, adminID string) ([]*domain.Trip, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE admin_id = $1 AND status = $2 ORDER BY start_time DESC`,
		adminID, domain.TripStatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, trip := range trips {
		if err := r.loadBoardingSets(ctx, trip); err != nil {
			return nil, err
		}
	}

	return trips, nil
}

// Complete transitions an IN_PROGRESS trip to a terminal status.
func (r *TripRepository) Complete(ctx context.Context, id string, status domain.TripStatus, endedAt time.Time, reason string) (*domain.Trip, error) {
	row := r.q.QueryRowContext(ctx, `
		UPDATE trips SET status = $2, end_time = $3, cancel_reason = $4
		WHERE id = $1 AND status = $5
		RETURNING `+tripColumns,
		id, status, endedAt, reason, domain.TripStatusInProgress,
	)

	trip, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if err := r.loadBoardingSets(ctx, trip); err != nil {
		return nil, err
	}

	return trip, nil
}

// UpdateLocation writes the trip's current location while it is IN_PROGRESS.
func (r *TripRepository) UpdateLocation(ctx context.Context, id string, pt domain.GeoPoint, at time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE trips SET current_lat = $2, current_lng = $3, location_updated_at = $4
		WHERE id = $1 AND status = $5`,
		id, pt.Latitude, pt.Longitude, at, domain.TripStatusInProgress,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// UpdateWeather replaces the trip's weather snapshot while it is IN_PROGRESS.
func (r *TripRepository) UpdateWeather(ctx context.Context, id string, w domain.WeatherSnapshot) (bool, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return false, err
	}

	result, err := r.q.ExecContext(ctx,
		`UPDATE trips SET weather = $2 WHERE id = $1 AND status = $3`,
		id, data, domain.TripStatusInProgress,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// SetBoardingState applies one forward boarding transition conditionally.
func (r *TripRepository) SetBoardingState(ctx context.Context, tripID, studentID string, from, to domain.BoardingState) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE trip_students SET state = $4, updated_at = NOW()
		WHERE trip_id = $1 AND student_id = $2 AND state = $3`,
		tripID, studentID, from, to,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// GetBoardingState returns one student's boarding state for a trip.
func (r *TripRepository) GetBoardingState(ctx context.Context, tripID, studentID string) (domain.BoardingState, error) {
	var state domain.BoardingState

	err := r.q.QueryRowContext(ctx,
		`SELECT state FROM trip_students WHERE trip_id = $1 AND student_id = $2`,
		tripID, studentID,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}

	return state, nil
}

// ListBoardingStates returns every student's boarding state on a trip.
func (r *TripRepository) ListBoardingStates(ctx context.Context, tripID string) (map[string]domain.BoardingState, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT student_id, state FROM trip_students WHERE trip_id = $1`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]domain.BoardingState)
	for rows.Next() {
		var studentID string
		var state domain.BoardingState
		if err := rows.Scan(&studentID, &state); err != nil {
			return nil, err
		}
		states[studentID] = state
	}

	return states, rows.Err()
}

// loadBoardingSets fills StudentsOnboard and StudentsExited from the
// per-student state rows. A student id appears in at most one set.
func (r *TripRepository) loadBoardingSets(ctx context.Context, trip *domain.Trip) error {
	states, err := r.ListBoardingStates(ctx, trip.ID)
	if err != nil {
		return err
	}

	trip.StudentsOnboard = []string{}
	trip.StudentsExited = []string{}
	for studentID, state := range states {
		switch state {
		case domain.BoardingOnboard:
			trip.StudentsOnboard = append(trip.StudentsOnboard, studentID)
		case domain.BoardingExited:
			trip.StudentsExited = append(trip.StudentsExited, studentID)
		}
	}

	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(s scanner) (*domain.Trip, error) {
	var trip domain.Trip
	var endTime, locAt sql.NullTime
	var reason sql.NullString
	var lat, lng sql.NullFloat64
	var weather []byte

	if err := s.Scan(
		&trip.ID,
		&trip.DriverID,
		&trip.DriverName,
		&trip.RouteID,
		&trip.AdminID,
		&trip.Status,
		&trip.StartTime,
		&endTime,
		&reason,
		&lat,
		&lng,
		&locAt,
		&weather,
	); err != nil {
		return nil, err
	}

	if endTime.Valid {
		trip.EndTime = endTime.Time
	}
	if reason.Valid {
		trip.CancelReason = reason.String
	}
	if lat.Valid && lng.Valid {
		trip.CurrentLocation = &domain.GeoPoint{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if locAt.Valid {
		trip.LocationUpdatedAt = locAt.Time
	}
	if len(weather) > 0 {
		var w domain.WeatherSnapshot
		if err := json.Unmarshal(weather, &w); err != nil {
			return nil, err
		}
		trip.Weather = &w
	}

	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
