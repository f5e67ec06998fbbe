package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
	"schooltrack/internal/stream"
)

// BoardingService moves students through WAITING -> ONBOARD -> EXITED on an
// active trip. Each move is a conditional single-row write, so concurrent and
// repeated calls for the same student settle on exactly one transition.
type BoardingService struct {
	trips     repository.TripRepository
	events    EventSink
	publisher ChangePublisher
	now       func() time.Time
	log       zerolog.Logger
}

// NewBoardingService creates a boarding service.
func NewBoardingService(trips repository.TripRepository, events EventSink, publisher ChangePublisher, log zerolog.Logger) *BoardingService {
	return &BoardingService{
		trips:     trips,
		events:    events,
		publisher: publisher,
		now:       time.Now,
		log:       log,
	}
}

// Board marks a student onboard. Boarding a student who is already onboard
// or exited is a no-op; the trip is returned unchanged.
func (s *BoardingService) Board(ctx context.Context, tripID, studentID string) (*domain.Trip, error) {
	return s.transition(ctx, tripID, studentID, domain.BoardingWaiting, domain.BoardingOnboard, EventStudentOnboard)
}

// Exit marks a student dropped off. Only ONBOARD students move; a WAITING or
// already EXITED student is a no-op.
func (s *BoardingService) Exit(ctx context.Context, tripID, studentID string) (*domain.Trip, error) {
	return s.transition(ctx, tripID, studentID, domain.BoardingOnboard, domain.BoardingExited, EventStudentDropoff)
}

func (s *BoardingService) transition(ctx context.Context, tripID, studentID string, from, to domain.BoardingState, eventType EventType) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if studentID == "" {
		return nil, ErrInvalidStudentID
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

	changed, err := s.trips.SetBoardingState(ctx, tripID, studentID, from, to)
	if err != nil {
		return nil, err
	}

	if !changed {
		// Either the student is not on this trip, or the row has already
		// moved past the expected state. The latter is a benign repeat.
		if _, err := s.trips.GetBoardingState(ctx, tripID, studentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrStudentNotOnTrip
			}
			return nil, err
		}
		return trip, nil
	}

	updated, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		// The write landed; fall back to the pre-transition copy rather
		// than failing the call.
		s.log.Warn().Err(err).Str("trip_id", tripID).Msg("trip re-read failed after boarding transition")
		updated = trip
	}

	s.publisher.TripChanged(ctx, updated, stream.OpUpdated)
	s.events.Emit(ctx, Event{Type: eventType, Trip: updated, StudentID: studentID})

	s.log.Info().
		Str("trip_id", tripID).
		Str("student_id", studentID).
		Str("state", string(to)).
		Msg("boarding state changed")

	return updated, nil
}

// BoardingStates returns the boarding state of every student on the trip.
func (s *BoardingService) BoardingStates(ctx context.Context, tripID string) (map[string]domain.BoardingState, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	states, err := s.trips.ListBoardingStates(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return states, nil
}
