package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
	"schooltrack/internal/stream"
)

// NotificationDispatcher turns domain events into per-recipient notification
// records and pushes each created record to its recipient's change stream.
//
// Dispatch is best-effort per recipient: one failed write is logged and does
// not block the rest of the fan-out.
type NotificationDispatcher struct {
	notifications repository.NotificationRepository
	students      repository.StudentRepository
	routes        repository.RouteRepository
	publisher     ChangePublisher
	now           func() time.Time
	log           zerolog.Logger
}

// NewNotificationDispatcher creates a notification dispatcher.
func NewNotificationDispatcher(
	notifications repository.NotificationRepository,
	students repository.StudentRepository,
	routes repository.RouteRepository,
	publisher ChangePublisher,
	log zerolog.Logger,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		students:      students,
		routes:        routes,
		publisher:     publisher,
		now:           time.Now,
		log:           log,
	}
}

// Emit resolves the event's recipients, persists one notification per
// recipient and publishes each to the recipient's stream. Returns the ids of
// the notifications created.
func (d *NotificationDispatcher) Emit(ctx context.Context, ev Event) []string {
	notifications := d.build(ctx, ev)

	created := make([]string, 0, len(notifications))
	for _, n := range notifications {
		if err := d.notifications.Create(ctx, n); err != nil {
			d.log.Error().Err(err).
				Str("type", string(n.Type)).
				Str("recipient", n.RecipientUserID).
				Msg("failed to persist notification")
			continue
		}
		created = append(created, n.ID)
		d.publisher.NotificationChanged(ctx, n, stream.OpCreated)
	}

	return created
}

// WeatherAlert raises a weather alert event for the trip. It exists so the
// weather service can depend on a narrow alerting interface.
func (d *NotificationDispatcher) WeatherAlert(ctx context.Context, t *domain.Trip, w domain.WeatherSnapshot) {
	d.Emit(ctx, Event{Type: EventWeatherAlert, Trip: t, Weather: &w})
}

// ListForRecipient returns a recipient's notifications, newest first.
func (d *NotificationDispatcher) ListForRecipient(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if userID == "" {
		return nil, ErrInvalidDriverID
	}
	return d.notifications.ListByRecipient(ctx, userID, limit)
}

// MarkRead flips a notification's read flag on behalf of its recipient.
// Marking an already-read notification is a no-op.
func (d *NotificationDispatcher) MarkRead(ctx context.Context, id, actorUserID string) error {
	n, err := d.notifications.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientUserID != actorUserID {
		return ErrNotRecipient
	}

	changed, err := d.notifications.MarkRead(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	n.Read = true
	d.publisher.NotificationChanged(ctx, n, stream.OpUpdated)
	return nil
}

func (d *NotificationDispatcher) build(ctx context.Context, ev Event) []*domain.Notification {
	trip := ev.Trip
	if trip == nil {
		return nil
	}

	switch ev.Type {
	case EventTripStarted:
		return d.forAdmin(trip, domain.NotificationTripStarted,
			"Trip Started",
			fmt.Sprintf("%s started a trip on route %s", driverLabel(trip), trip.RouteID))

	case EventTripEnded:
		return d.forAdmin(trip, domain.NotificationTripEnded,
			"Trip Ended",
			fmt.Sprintf("%s completed the trip on route %s", driverLabel(trip), trip.RouteID))

	case EventTripCancelled:
		msg := fmt.Sprintf("%s cancelled the trip on route %s", driverLabel(trip), trip.RouteID)
		if trip.CancelReason != "" {
			msg = fmt.Sprintf("%s: %s", msg, trip.CancelReason)
		}
		return d.forAdmin(trip, domain.NotificationTripEnded, "Trip Cancelled", msg)

	case EventLocationStale:
		return d.forAdmin(trip, domain.NotificationEmergency,
			"Trip Location Stale",
			fmt.Sprintf("No position updates from %s on route %s", driverLabel(trip), trip.RouteID))

	case EventStudentOnboard:
		return d.forParent(ctx, trip, ev.StudentID, domain.NotificationStudentOnboard,
			"Student Onboard", "%s has boarded the bus")

	case EventStudentDropoff:
		return d.forParent(ctx, trip, ev.StudentID, domain.NotificationStudentDropoff,
			"Student Dropped Off", "%s has been dropped off")

	case EventBehaviorReported:
		return d.forBehavior(ctx, ev)

	case EventBusApproaching:
		return d.forApproach(ctx, trip)

	case EventEmergency:
		msg := ev.Detail
		if msg == "" {
			msg = fmt.Sprintf("%s reported an emergency on route %s", driverLabel(trip), trip.RouteID)
		}
		return d.forAdmin(trip, domain.NotificationEmergency, "Emergency", msg)

	case EventWeatherAlert:
		if ev.Weather == nil {
			return nil
		}
		return d.forAdmin(trip, domain.NotificationWeatherAlert,
			"Severe Weather",
			fmt.Sprintf("Severe weather (%s) on route %s", ev.Weather.Description, trip.RouteID))
	}

	d.log.Warn().Str("type", string(ev.Type)).Msg("unknown event type; dropping")
	return nil
}

// forAdmin addresses a notification to the trip's owning admin. Trips without
// an owner produce nothing.
func (d *NotificationDispatcher) forAdmin(trip *domain.Trip, typ domain.NotificationType, title, message string) []*domain.Notification {
	if trip.AdminID == "" {
		return nil
	}
	return []*domain.Notification{d.record(trip, trip.AdminID, typ, title, message, "")}
}

func (d *NotificationDispatcher) forParent(ctx context.Context, trip *domain.Trip, studentID string, typ domain.NotificationType, title, messageFormat string) []*domain.Notification {
	student, err := d.students.GetByID(ctx, studentID)
	if err != nil {
		d.log.Warn().Err(err).Str("student_id", studentID).Msg("student lookup failed; skipping parent notification")
		return nil
	}
	if student.ParentID == "" {
		return nil
	}

	n := d.record(trip, student.ParentID, typ, title, fmt.Sprintf(messageFormat, student.FullName), studentID)
	return []*domain.Notification{n}
}

// forBehavior notifies the owning admin of every report, and the student's
// parent of everything except positive recognitions.
func (d *NotificationDispatcher) forBehavior(ctx context.Context, ev Event) []*domain.Notification {
	report := ev.Behavior
	if report == nil {
		return nil
	}
	trip := ev.Trip

	var out []*domain.Notification

	studentName := report.StudentID
	student, err := d.students.GetByID(ctx, report.StudentID)
	if err != nil {
		d.log.Warn().Err(err).Str("student_id", report.StudentID).Msg("student lookup failed for behavior report")
		student = nil
	} else {
		studentName = student.FullName
	}

	title := "Behavior Report"
	message := fmt.Sprintf("%s filed a %s report about %s", driverLabel(trip), report.Type, studentName)
	if report.Type == domain.BehaviorPositive {
		title = "Positive Recognition"
		message = fmt.Sprintf("%s recognized %s for positive behavior", driverLabel(trip), studentName)
	}

	if trip.AdminID != "" {
		out = append(out, d.record(trip, trip.AdminID, domain.NotificationStudentBehavior, title, message, report.StudentID))
	}

	if report.Type != domain.BehaviorPositive && student != nil && student.ParentID != "" {
		out = append(out, d.record(trip, student.ParentID, domain.NotificationStudentBehavior, title, message, report.StudentID))
	}

	return out
}

// forApproach notifies the parents of every student still waiting for pickup.
func (d *NotificationDispatcher) forApproach(ctx context.Context, trip *domain.Trip) []*domain.Notification {
	route, err := d.routes.GetByID(ctx, trip.RouteID)
	if err != nil {
		d.log.Warn().Err(err).Str("route_id", trip.RouteID).Msg("route lookup failed; skipping approach notifications")
		return nil
	}

	boarded := make(map[string]bool, len(trip.StudentsOnboard)+len(trip.StudentsExited))
	for _, id := range trip.StudentsOnboard {
		boarded[id] = true
	}
	for _, id := range trip.StudentsExited {
		boarded[id] = true
	}

	var out []*domain.Notification
	for _, studentID := range route.Students {
		if boarded[studentID] {
			continue
		}
		student, err := d.students.GetByID(ctx, studentID)
		if err != nil || student.ParentID == "" {
			continue
		}
		out = append(out, d.record(trip, student.ParentID, domain.NotificationBusApproaching,
			"Bus Approaching",
			fmt.Sprintf("The bus is approaching %s's stop", student.FullName),
			studentID))
	}

	return out
}

func (d *NotificationDispatcher) record(trip *domain.Trip, recipientID string, typ domain.NotificationType, title, message, studentID string) *domain.Notification {
	return &domain.Notification{
		ID:              uuid.New().String(),
		RecipientUserID: recipientID,
		Title:           title,
		Message:         message,
		Read:            false,
		CreatedAt:       d.now(),
		Type:            typ,
		StudentID:       studentID,
		DriverID:        trip.DriverID,
		TripID:          trip.ID,
	}
}

func driverLabel(trip *domain.Trip) string {
	if trip.DriverName != "" {
		return trip.DriverName
	}
	return "The driver"
}
