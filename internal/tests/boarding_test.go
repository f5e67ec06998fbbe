package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
	"schooltrack/internal/service"
)

// ──────────────────────────────────────────────
// STUDENT BOARDING STATE
// ──────────────────────────────────────────────

type boardingFixture struct {
	trips     *MockTripRepository
	sink      *MockSink
	publisher *MockPublisher
	svc       *service.BoardingService
}

func newBoardingFixture() *boardingFixture {
	f := &boardingFixture{
		trips:     NewMockTripRepository(),
		sink:      NewMockSink(),
		publisher: NewMockPublisher(),
	}
	f.svc = service.NewBoardingService(f.trips, f.sink, f.publisher, zerolog.Nop())
	return f
}

func (f *boardingFixture) seedActiveTrip(students ...string) *domain.Trip {
	trip := &domain.Trip{
		ID:        "trip-1",
		DriverID:  "driver-1",
		RouteID:   "route-1",
		AdminID:   "admin-1",
		Status:    domain.TripStatusInProgress,
		StartTime: time.Now(),
	}
	f.trips.AddTrip(trip, students...)
	return trip
}

func TestBoard_MovesStudentOnboard(t *testing.T) {
	t.Parallel()

	f := newBoardingFixture()
	f.seedActiveTrip("student-1", "student-2")

	trip, err := f.svc.Board(context.Background(), "trip-1", "student-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(trip.StudentsOnboard) != 1 || trip.StudentsOnboard[0] != "student-1" {
		t.Errorf("expected student-1 onboard, got %v", trip.StudentsOnboard)
	}
	if len(trip.StudentsExited) != 0 {
		t.Errorf("expected no exited students, got %v", trip.StudentsExited)
	}
	if f.sink.CountOfType(service.EventStudentOnboard) != 1 {
		t.Error("expected a student onboard event")
	}
	if f.publisher.TripChangeCount() != 1 {
		t.Errorf("expected 1 pushed change, got %d", f.publisher.TripChangeCount())
	}
}

func TestBoard_RepeatIsNoOp(t *testing.T) {
	t.Parallel()

	f := newBoardingFixture()
	f.seedActiveTrip("student-1")

	if _, err := f.svc.Board(context.Background(), "trip-1", "student-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Board(context.Background(), "trip-1", "student-1"); err != nil {
		t.Fatalf("repeat board should be a no-op, got %v", err)
	}

	if f.sink.CountOfType(service.EventStudentOnboard) != 1 {
		t.Errorf("expected exactly 1 onboard event, got %d", f.sink.CountOfType(service.EventStudentOnboard))
	}
	if f.publisher.TripChangeCount() != 1 {
		t.Errorf("expected exactly 1 pushed change, got %d", f.publisher.TripChangeCount())
	}
}

func TestExit_RequiresOnboard(t *testing.T) {
	t.Parallel()

	f := newBoardingFixture()
	f.seedActiveTrip("student-1")

	// Student is still WAITING; exit must not apply.
	if _, err := f.svc.Exit(context.Background(), "trip-1", "student-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := f.trips.GetBoardingState(context.Background(), "trip-1", "student-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != domain.BoardingWaiting {
		t.Errorf("expected WAITING, got %s", state)
	}
	if f.sink.CountOfType(service.EventStudentDropoff) != 0 {
		t.Error("expected no dropoff event")
	}
}

func TestBoard_UnknownStudent(t *testing.T) {
	t.Parallel()

	f := newBoardingFixture()
	f.seedActiveTrip("student-1")

	_, err := f.svc.Board(context.Background(), "trip-1", "stranger")
	if !errors.Is(err, service.ErrStudentNotOnTrip) {
		t.Errorf("expected ErrStudentNotOnTrip, got %v", err)
	}
}

func TestBoard_TripNotActive(t *testing.T) {
	t.Parallel()

	f := newBoardingFixture()
	trip := &domain.Trip{
		ID:     "trip-1",
		Status: domain.TripStatusCompleted,
	}
	f.trips.AddTrip(trip, "student-1")

	_, err := f.svc.Board(context.Background(), "trip-1", "student-1")
	if !errors.Is(err, service.ErrTripNotActive) {
		t.Errorf("expected ErrTripNotActive, got %v", err)
	}
}

func TestBoardAndExit_SetsStayDisjoint(t *testing.T) {
	t.Parallel()

	f := newBoardingFixture()
	f.seedActiveTrip("student-1", "student-2")

	if _, err := f.svc.Board(context.Background(), "trip-1", "student-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trip, err := f.svc.Exit(context.Background(), "trip-1", "student-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, onboard := range trip.StudentsOnboard {
		for _, exited := range trip.StudentsExited {
			if onboard == exited {
				t.Errorf("student %s is in both sets", onboard)
			}
		}
	}
	if len(trip.StudentsExited) != 1 || trip.StudentsExited[0] != "student-1" {
		t.Errorf("expected student-1 exited, got %v", trip.StudentsExited)
	}
}

func TestBoard_ConcurrentRequestsSettleOnOneTransition(t *testing.T) {
	t.Parallel()

	f := newBoardingFixture()
	f.seedActiveTrip("student-1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Board(context.Background(), "trip-1", "student-1")
		}()
	}
	wg.Wait()

	if got := f.sink.CountOfType(service.EventStudentOnboard); got != 1 {
		t.Errorf("expected exactly 1 onboard event from 10 concurrent calls, got %d", got)
	}
	state, err := f.trips.GetBoardingState(context.Background(), "trip-1", "student-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != domain.BoardingOnboard {
		t.Errorf("expected ONBOARD, got %s", state)
	}
}
