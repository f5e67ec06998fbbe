package postgres

import (
	"context"
	"database/sql"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
)

// BehaviorRepository is a PostgreSQL implementation of
// repository.BehaviorRepository.
type BehaviorRepository struct {
	q Querier
}

// NewBehaviorRepository creates a new PostgreSQL behavior repository.
func NewBehaviorRepository(db *sql.DB) *BehaviorRepository {
	return &BehaviorRepository{q: db}
}

// Create persists a new behavior report.
func (r *BehaviorRepository) Create(ctx context.Context, report *domain.BehaviorReport) error {
	query := `
		INSERT INTO behavior_reports (id, student_id, driver_id, driver_name, trip_id,
			type, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		report.ID,
		report.StudentID,
		report.DriverID,
		report.DriverName,
		report.TripID,
		report.Type,
		report.Description,
		report.Status,
		report.CreatedAt,
	)

	return err
}

// ListByStudent retrieves a student's reports, newest first.
func (r *BehaviorRepository) ListByStudent(ctx context.Context, studentID string) ([]*domain.BehaviorReport, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, student_id, driver_id, driver_name, trip_id, type, description, status, created_at
		FROM behavior_reports WHERE student_id = $1 ORDER BY created_at DESC`,
		studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*domain.BehaviorReport
	for rows.Next() {
		var report domain.BehaviorReport
		if err := rows.Scan(
			&report.ID,
			&report.StudentID,
			&report.DriverID,
			&report.DriverName,
			&report.TripID,
			&report.Type,
			&report.Description,
			&report.Status,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// Ensure BehaviorRepository implements repository.BehaviorRepository.
var _ repository.BehaviorRepository = (*BehaviorRepository)(nil)
