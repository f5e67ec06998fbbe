package weather

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
	"schooltrack/internal/stream"
)

// Provider supplies the current weather at a point.
type Provider interface {
	Current(ctx context.Context, pt domain.GeoPoint) (domain.WeatherSnapshot, error)
}

// TripStore is the slice of the trip store the weather service needs.
type TripStore interface {
	GetByID(ctx context.Context, id string) (*domain.Trip, error)
	UpdateWeather(ctx context.Context, id string, w domain.WeatherSnapshot) (bool, error)
}

// Publisher pushes committed trip changes to subscribers.
type Publisher interface {
	TripChanged(ctx context.Context, t *domain.Trip, op stream.Op)
}

// Alerter is notified when severe conditions are attached to a trip.
type Alerter interface {
	WeatherAlert(ctx context.Context, t *domain.Trip, w domain.WeatherSnapshot)
}

// Service refreshes the weather attached to active trips. Refreshes are
// throttled per trip independently of how often locations are sampled, and a
// provider failure keeps the previous snapshot in place.
type Service struct {
	provider        Provider
	trips           TripStore
	publisher       Publisher
	alerter         Alerter
	refreshInterval time.Duration
	now             func() time.Time
	log             zerolog.Logger
}

// NewService creates a weather service.
func NewService(provider Provider, trips TripStore, publisher Publisher, alerter Alerter, refreshInterval time.Duration, log zerolog.Logger) *Service {
	return &Service{
		provider:        provider,
		trips:           trips,
		publisher:       publisher,
		alerter:         alerter,
		refreshInterval: refreshInterval,
		now:             time.Now,
		log:             log,
	}
}

// MaybeRefresh attaches fresh weather to the trip if its snapshot is older
// than the refresh interval. The trip is re-read so the throttle decision is
// made against the stored snapshot, not a caller-held copy.
func (s *Service) MaybeRefresh(ctx context.Context, tripID string, loc domain.GeoPoint) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		s.log.Warn().Err(err).Str("trip_id", tripID).Msg("weather refresh: trip read failed")
		return
	}
	if trip.Status != domain.TripStatusInProgress {
		return
	}

	now := s.now()
	if trip.Weather != nil && now.Sub(trip.Weather.UpdatedAt) < s.refreshInterval {
		return
	}

	snapshot, err := s.provider.Current(ctx, loc)
	if err != nil {
		// Keep the stale snapshot; the next eligible sample retries.
		s.log.Warn().Err(err).Str("trip_id", tripID).Msg("weather provider call failed")
		return
	}
	snapshot.UpdatedAt = now

	changed, err := s.trips.UpdateWeather(ctx, tripID, snapshot)
	if err != nil {
		s.log.Warn().Err(err).Str("trip_id", tripID).Msg("weather refresh: store write failed")
		return
	}
	if !changed {
		// Trip reached a terminal state between the read and the write.
		return
	}

	trip.Weather = &snapshot
	s.publisher.TripChanged(ctx, trip, stream.OpUpdated)

	if snapshot.Severe() {
		s.alerter.WeatherAlert(ctx, trip, snapshot)
	}

	s.log.Debug().
		Str("trip_id", tripID).
		Str("condition", snapshot.Condition).
		Float64("temperature", snapshot.Temperature).
		Msg("weather refreshed")
}
