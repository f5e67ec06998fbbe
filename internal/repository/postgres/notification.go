package postgres

import (
	"context"
	"database/sql"
	"errors"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
)

const notificationColumns = `id, user_id, title, message, read, created_at, type,
	student_id, driver_id, trip_id`

// NotificationRepository is a PostgreSQL implementation of
// repository.NotificationRepository.
type NotificationRepository struct {
	q Querier
}

// NewNotificationRepository creates a new PostgreSQL notification repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{q: db}
}

// Create persists a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, read, created_at, type,
			student_id, driver_id, trip_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		n.ID,
		n.RecipientUserID,
		n.Title,
		n.Message,
		n.Read,
		n.CreatedAt,
		n.Type,
		n.StudentID,
		n.DriverID,
		n.TripID,
	)

	return err
}

// GetByID retrieves a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return n, nil
}

// ListByRecipient retrieves a recipient's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkRead flips the read flag from false to true.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND read = FALSE`, id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var studentID, driverID, tripID sql.NullString

	if err := s.Scan(
		&n.ID,
		&n.RecipientUserID,
		&n.Title,
		&n.Message,
		&n.Read,
		&n.CreatedAt,
		&n.Type,
		&studentID,
		&driverID,
		&tripID,
	); err != nil {
		return nil, err
	}

	n.StudentID = studentID.String
	n.DriverID = driverID.String
	n.TripID = tripID.String

	return &n, nil
}

// Ensure NotificationRepository implements repository.NotificationRepository.
var _ repository.NotificationRepository = (*NotificationRepository)(nil)
