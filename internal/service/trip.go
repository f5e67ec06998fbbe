package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"schooltrack/internal/config"
	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
	"schooltrack/internal/stream"
)

// TripService owns the trip lifecycle. Starting a trip spawns a per-trip
// sampling loop that tracks the bus until the trip reaches a terminal state;
// ending or cancelling stops the loop before the terminal write lands.
type TripService struct {
	trips     repository.TripRepository
	routes    repository.RouteRepository
	users     repository.UserRepository
	positions PositionSource
	weather   WeatherRefresher
	events    EventSink
	publisher ChangePublisher
	streams   StreamSource
	cfg       config.SamplerConfig
	log       zerolog.Logger
	now       func() time.Time

	onStall func(tripID string)

	mu       sync.Mutex
	samplers map[string]*sampler
}

// NewTripService creates a trip service.
func NewTripService(
	trips repository.TripRepository,
	routes repository.RouteRepository,
	users repository.UserRepository,
	positions PositionSource,
	weather WeatherRefresher,
	events EventSink,
	publisher ChangePublisher,
	streams StreamSource,
	cfg config.SamplerConfig,
	log zerolog.Logger,
) *TripService {
	return &TripService{
		trips:     trips,
		routes:    routes,
		users:     users,
		positions: positions,
		weather:   weather,
		events:    events,
		publisher: publisher,
		streams:   streams,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		samplers:  make(map[string]*sampler),
	}
}

// SetStallHandler registers the callback invoked when a trip's sampling has
// been failing for longer than the stall window. Must be set before any trip
// starts.
func (s *TripService) SetStallHandler(fn func(tripID string)) {
	s.onStall = fn
}

// StartTrip creates an IN_PROGRESS trip for the driver's assigned route,
// seeds a WAITING boarding row per student and starts the sampling loop.
// A driver runs at most one trip at a time.
func (s *TripService) StartTrip(ctx context.Context, driverID string) (*domain.Trip, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	route, err := s.routes.GetByDriverID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoRouteAssigned
		}
		return nil, err
	}

	active, err := s.trips.GetActiveByDriverID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrTripAlreadyActive
	}

	now := s.now()
	trip := &domain.Trip{
		ID:              uuid.New().String(),
		DriverID:        driverID,
		RouteID:         route.ID,
		AdminID:         route.AdminID,
		Status:          domain.TripStatusInProgress,
		StartTime:       now,
		StudentsOnboard: []string{},
		StudentsExited:  []string{},
	}

	if user, err := s.users.GetByID(ctx, driverID); err == nil {
		trip.DriverName = user.DisplayName
	}

	// Seed the trip with the device's latest fix when one exists; the
	// sampling loop takes over from there.
	fixCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	if pt, at, err := s.positions.Latest(fixCtx, driverID); err == nil {
		trip.CurrentLocation = &pt
		trip.LocationUpdatedAt = at
	}
	cancel()

	// The insert itself re-checks the one-active-trip invariant; a racing
	// start that slipped past the read above loses here.
	if err := s.trips.Create(ctx, trip, route.Students); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrTripAlreadyActive
		}
		return nil, err
	}

	s.publisher.TripChanged(ctx, trip, stream.OpCreated)
	s.events.Emit(ctx, Event{Type: EventTripStarted, Trip: trip})

	if trip.CurrentLocation != nil {
		go s.weather.MaybeRefresh(context.WithoutCancel(ctx), trip.ID, *trip.CurrentLocation)
	}

	s.startSampler(trip, route)

	s.log.Info().
		Str("trip_id", trip.ID).
		Str("driver_id", driverID).
		Str("route_id", route.ID).
		Msg("trip started")

	return trip, nil
}

// EndTrip completes an IN_PROGRESS trip. The sampling loop is stopped and
// drained before the terminal write, so no location or weather write lands
// after the trip is COMPLETED.
func (s *TripService) EndTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	return s.finish(ctx, tripID, domain.TripStatusCompleted, "")
}

// CancelTrip cancels an IN_PROGRESS trip with an optional reason.
func (s *TripService) CancelTrip(ctx context.Context, tripID, reason string) (*domain.Trip, error) {
	return s.finish(ctx, tripID, domain.TripStatusCancelled, reason)
}

func (s *TripService) finish(ctx context.Context, tripID string, status domain.TripStatus, reason string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
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

	// Stop sampling before the terminal write so the loop cannot race a
	// location update against the completed row.
	s.stopSampler(tripID)

	updated, err := s.trips.Complete(ctx, tripID, status, s.now(), reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotActive
		}
		return nil, err
	}

	s.publisher.TripChanged(ctx, updated, stream.OpUpdated)

	eventType := EventTripEnded
	if status == domain.TripStatusCancelled {
		eventType = EventTripCancelled
	}
	s.events.Emit(ctx, Event{Type: eventType, Trip: updated})

	s.log.Info().
		Str("trip_id", tripID).
		Str("status", string(status)).
		Msg("trip finished")

	return updated, nil
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return trip, nil
}

// ActiveTripForDriver returns the driver's IN_PROGRESS trip, or nil when the
// driver is not on a trip.
func (s *TripService) ActiveTripForDriver(ctx context.Context, driverID string) (*domain.Trip, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.trips.GetActiveByDriverID(ctx, driverID)
}

// ActiveTripsForAdmin returns all IN_PROGRESS trips owned by the admin.
func (s *TripService) ActiveTripsForAdmin(ctx context.Context, adminID string) ([]*domain.Trip, error) {
	if adminID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.trips.ListActiveByAdminID(ctx, adminID)
}

// Shutdown stops every running sampling loop and waits for them to drain.
func (s *TripService) Shutdown() {
	s.mu.Lock()
	running := make([]*sampler, 0, len(s.samplers))
	for _, smp := range s.samplers {
		running = append(running, smp)
	}
	s.samplers = make(map[string]*sampler)
	s.mu.Unlock()

	for _, smp := range running {
		smp.cancel()
	}
	for _, smp := range running {
		<-smp.done
	}
}
