package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
)

// BehaviorService records driver observations about students and raises the
// events that notify the admin and the student's parent.
type BehaviorService struct {
	reports repository.BehaviorRepository
	trips   repository.TripRepository
	users   repository.UserRepository
	events  EventSink
	now     func() time.Time
	log     zerolog.Logger
}

// NewBehaviorService creates a behavior service.
func NewBehaviorService(reports repository.BehaviorRepository, trips repository.TripRepository, users repository.UserRepository, events EventSink, log zerolog.Logger) *BehaviorService {
	return &BehaviorService{
		reports: reports,
		trips:   trips,
		users:   users,
		events:  events,
		now:     time.Now,
		log:     log,
	}
}

// Report files a behavior report about a student on an active trip.
func (s *BehaviorService) Report(ctx context.Context, tripID, studentID string, typ domain.BehaviorType, description string) (*domain.BehaviorReport, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}
	if !domain.ValidBehaviorType(typ) {
		return nil, ErrInvalidBehaviorType
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if trip.Status != domain.TripStatusInProgress {
		return nil, ErrTripNotActive
	}

	report := &domain.BehaviorReport{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		DriverID:    trip.DriverID,
		DriverName:  trip.DriverName,
		TripID:      tripID,
		Type:        typ,
		Description: description,
		Status:      domain.BehaviorStatusPending,
		CreatedAt:   s.now(),
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, Event{Type: EventBehaviorReported, Trip: trip, StudentID: studentID, Behavior: report})

	s.log.Info().
		Str("trip_id", tripID).
		Str("student_id", studentID).
		Str("type", string(typ)).
		Msg("behavior report filed")

	return report, nil
}

// ReportsForStudent returns a student's reports, newest first.
func (s *BehaviorService) ReportsForStudent(ctx context.Context, studentID string) ([]*domain.BehaviorReport, error) {
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}
	return s.reports.ListByStudent(ctx, studentID)
}

// ReportEmergency raises an emergency event on an active trip. Emergencies
// are not persisted beyond the notifications they fan out to.
func (s *BehaviorService) ReportEmergency(ctx context.Context, tripID, detail string) error {
	if tripID == "" {
		return ErrInvalidTripID
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTripNotFound
		}
		return err
	}
	if trip.Status != domain.TripStatusInProgress {
		return ErrTripNotActive
	}

	s.events.Emit(ctx, Event{Type: EventEmergency, Trip: trip, Detail: detail})

	s.log.Warn().
		Str("trip_id", tripID).
		Str("driver_id", trip.DriverID).
		Msg("emergency reported")

	return nil
}
