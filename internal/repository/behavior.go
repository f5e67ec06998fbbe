package repository

import (
	"context"

	"schooltrack/internal/domain"
)

// BehaviorRepository defines the persistence operations for behavior reports.
type BehaviorRepository interface {
	// Create persists a new behavior report.
	Create(ctx context.Context, r *domain.BehaviorReport) error

	// ListByStudent retrieves a student's reports, newest first.
	ListByStudent(ctx context.Context, studentID string) ([]*domain.BehaviorReport, error)
}
