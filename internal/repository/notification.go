package repository

import (
	"context"

	"schooltrack/internal/domain"
)

// NotificationRepository defines the persistence operations for
// notifications. Records are append-only apart from the read flag.
type NotificationRepository interface {
	// Create persists a new notification.
	Create(ctx context.Context, n *domain.Notification) error

	// GetByID retrieves a notification by ID.
	GetByID(ctx context.Context, id string) (*domain.Notification, error)

	// ListByRecipient retrieves a recipient's notifications, newest first.
	ListByRecipient(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)

	// MarkRead flips the read flag from false to true. Returns false when
	// the notification was already read.
	MarkRead(ctx context.Context, id string) (bool, error)
}
