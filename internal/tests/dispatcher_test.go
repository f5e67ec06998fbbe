package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
	"schooltrack/internal/service"
)

// ──────────────────────────────────────────────
// NOTIFICATION DISPATCH
// ──────────────────────────────────────────────

type dispatchFixture struct {
	notifications *MockNotificationRepository
	students      *MockStudentRepository
	routes        *MockRouteRepository
	publisher     *MockPublisher
	svc           *service.NotificationDispatcher
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		notifications: NewMockNotificationRepository(),
		students:      NewMockStudentRepository(),
		routes:        NewMockRouteRepository(),
		publisher:     NewMockPublisher(),
	}
	f.svc = service.NewNotificationDispatcher(f.notifications, f.students, f.routes, f.publisher, zerolog.Nop())
	return f
}

func activeTrip() *domain.Trip {
	return &domain.Trip{
		ID:         "trip-1",
		DriverID:   "driver-1",
		DriverName: "Pat Driver",
		RouteID:    "route-1",
		AdminID:    "admin-1",
		Status:     domain.TripStatusInProgress,
		StartTime:  time.Now(),
	}
}

func TestEmit_TripStartedNotifiesAdmin(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()

	created := f.svc.Emit(context.Background(), service.Event{Type: service.EventTripStarted, Trip: activeTrip()})
	if len(created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(created))
	}

	got := f.notifications.ForRecipient("admin-1")
	if len(got) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(got))
	}
	if got[0].Type != domain.NotificationTripStarted {
		t.Errorf("expected type %s, got %s", domain.NotificationTripStarted, got[0].Type)
	}
	if got[0].TripID != "trip-1" {
		t.Errorf("expected trip reference, got %q", got[0].TripID)
	}
	if f.publisher.NotificationChangeCount() != 1 {
		t.Error("expected the notification to be pushed to its recipient")
	}
}

func TestEmit_StudentOnboardNotifiesParent(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()
	f.students.AddStudent(&domain.Student{ID: "student-1", FullName: "Alex Kim", ParentID: "parent-1"})

	f.svc.Emit(context.Background(), service.Event{
		Type:      service.EventStudentOnboard,
		Trip:      activeTrip(),
		StudentID: "student-1",
	})

	got := f.notifications.ForRecipient("parent-1")
	if len(got) != 1 {
		t.Fatalf("expected 1 parent notification, got %d", len(got))
	}
	if got[0].Type != domain.NotificationStudentOnboard {
		t.Errorf("expected type %s, got %s", domain.NotificationStudentOnboard, got[0].Type)
	}
	if !strings.Contains(got[0].Message, "Alex Kim") {
		t.Errorf("expected the student's name in the message, got %q", got[0].Message)
	}
}

func TestEmit_UnknownStudentSkipsParentQuietly(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()

	created := f.svc.Emit(context.Background(), service.Event{
		Type:      service.EventStudentOnboard,
		Trip:      activeTrip(),
		StudentID: "missing-student",
	})
	if len(created) != 0 {
		t.Errorf("expected no notifications for unknown student, got %d", len(created))
	}
}

func TestEmit_BehaviorReportRouting(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()
	f.students.AddStudent(&domain.Student{ID: "student-1", FullName: "Alex Kim", ParentID: "parent-1"})

	report := &domain.BehaviorReport{
		ID:        "report-1",
		StudentID: "student-1",
		Type:      domain.BehaviorBullying,
	}
	f.svc.Emit(context.Background(), service.Event{
		Type:      service.EventBehaviorReported,
		Trip:      activeTrip(),
		StudentID: "student-1",
		Behavior:  report,
	})

	if got := f.notifications.ForRecipient("admin-1"); len(got) != 1 {
		t.Errorf("expected 1 admin notification, got %d", len(got))
	}
	if got := f.notifications.ForRecipient("parent-1"); len(got) != 1 {
		t.Errorf("expected 1 parent notification, got %d", len(got))
	}
}

func TestEmit_PositiveBehaviorSkipsParent(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()
	f.students.AddStudent(&domain.Student{ID: "student-1", FullName: "Alex Kim", ParentID: "parent-1"})

	report := &domain.BehaviorReport{
		ID:        "report-1",
		StudentID: "student-1",
		Type:      domain.BehaviorPositive,
	}
	f.svc.Emit(context.Background(), service.Event{
		Type:      service.EventBehaviorReported,
		Trip:      activeTrip(),
		StudentID: "student-1",
		Behavior:  report,
	})

	if got := f.notifications.ForRecipient("admin-1"); len(got) != 1 {
		t.Errorf("expected 1 admin notification, got %d", len(got))
	}
	if got := f.notifications.ForRecipient("parent-1"); len(got) != 0 {
		t.Errorf("expected no parent notification for positive recognition, got %d", len(got))
	}
}

func TestEmit_BusApproachingFansOutToWaitingParents(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()
	f.routes.AddRoute(&domain.Route{
		ID:       "route-1",
		DriverID: "driver-1",
		AdminID:  "admin-1",
		Students: []string{"student-1", "student-2", "student-3"},
	})
	f.students.AddStudent(&domain.Student{ID: "student-1", FullName: "Alex Kim", ParentID: "parent-1"})
	f.students.AddStudent(&domain.Student{ID: "student-2", FullName: "Sam Lee", ParentID: "parent-2"})
	f.students.AddStudent(&domain.Student{ID: "student-3", FullName: "Ria Das", ParentID: "parent-3"})

	trip := activeTrip()
	trip.StudentsOnboard = []string{"student-2"}
	trip.StudentsExited = []string{"student-3"}

	f.svc.Emit(context.Background(), service.Event{Type: service.EventBusApproaching, Trip: trip})

	if got := f.notifications.ForRecipient("parent-1"); len(got) != 1 {
		t.Errorf("expected waiting student's parent to be notified, got %d", len(got))
	}
	if got := f.notifications.ForRecipient("parent-2"); len(got) != 0 {
		t.Error("onboard student's parent should not be notified")
	}
	if got := f.notifications.ForRecipient("parent-3"); len(got) != 0 {
		t.Error("exited student's parent should not be notified")
	}
}

func TestEmit_WeatherAlertNotifiesAdmin(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()

	snapshot := domain.WeatherSnapshot{
		Condition:   domain.WeatherThunderstorm,
		Description: "Severe thunderstorm",
	}
	f.svc.WeatherAlert(context.Background(), activeTrip(), snapshot)

	got := f.notifications.ForRecipient("admin-1")
	if len(got) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(got))
	}
	if got[0].Type != domain.NotificationWeatherAlert {
		t.Errorf("expected type %s, got %s", domain.NotificationWeatherAlert, got[0].Type)
	}
}

func TestMarkRead_IdempotentAndGuarded(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()

	created := f.svc.Emit(context.Background(), service.Event{Type: service.EventTripStarted, Trip: activeTrip()})
	if len(created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(created))
	}
	id := created[0]

	// Another user may not flip the flag.
	if err := f.svc.MarkRead(context.Background(), id, "someone-else"); !errors.Is(err, service.ErrNotRecipient) {
		t.Errorf("expected ErrNotRecipient, got %v", err)
	}

	if err := f.svc.MarkRead(context.Background(), id, "admin-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1 create push + 1 read-flag push.
	if f.publisher.NotificationChangeCount() != 2 {
		t.Errorf("expected 2 pushed changes, got %d", f.publisher.NotificationChangeCount())
	}

	// Marking again is a no-op and pushes nothing.
	if err := f.svc.MarkRead(context.Background(), id, "admin-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.publisher.NotificationChangeCount() != 2 {
		t.Errorf("expected no additional push on repeated mark, got %d", f.publisher.NotificationChangeCount())
	}

	got := f.notifications.ForRecipient("admin-1")
	if !got[0].Read {
		t.Error("expected the notification to be read")
	}
}

func TestEmit_EmergencyNotifiesAdmin(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()

	f.svc.Emit(context.Background(), service.Event{
		Type:   service.EventEmergency,
		Trip:   activeTrip(),
		Detail: "flat tire on highway",
	})

	got := f.notifications.ForRecipient("admin-1")
	if len(got) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(got))
	}
	if got[0].Type != domain.NotificationEmergency {
		t.Errorf("expected type %s, got %s", domain.NotificationEmergency, got[0].Type)
	}
	if got[0].Message != "flat tire on highway" {
		t.Errorf("expected the reported detail as message, got %q", got[0].Message)
	}
}
