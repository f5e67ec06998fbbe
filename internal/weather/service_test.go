package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schooltrack/internal/domain"
	"schooltrack/internal/repository"
	"schooltrack/internal/stream"
)

type stubProvider struct {
	snapshot domain.WeatherSnapshot
	err      error
	calls    int
}

func (p *stubProvider) Current(ctx context.Context, pt domain.GeoPoint) (domain.WeatherSnapshot, error) {
	p.calls++
	if p.err != nil {
		return domain.WeatherSnapshot{}, p.err
	}
	return p.snapshot, nil
}

type stubTripStore struct {
	trip    *domain.Trip
	updated *domain.WeatherSnapshot
	applied bool
}

func (s *stubTripStore) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if s.trip == nil {
		return nil, repository.ErrNotFound
	}
	copy := *s.trip
	return &copy, nil
}

func (s *stubTripStore) UpdateWeather(ctx context.Context, id string, w domain.WeatherSnapshot) (bool, error) {
	if !s.applied {
		return false, nil
	}
	s.updated = &w
	return true, nil
}

type stubPublisher struct {
	calls int
}

func (p *stubPublisher) TripChanged(ctx context.Context, t *domain.Trip, op stream.Op) {
	p.calls++
}

type stubAlerter struct {
	alerts []domain.WeatherSnapshot
}

func (a *stubAlerter) WeatherAlert(ctx context.Context, t *domain.Trip, w domain.WeatherSnapshot) {
	a.alerts = append(a.alerts, w)
}

func newWeatherFixture(trip *domain.Trip, provider *stubProvider) (*Service, *stubTripStore, *stubPublisher, *stubAlerter) {
	store := &stubTripStore{trip: trip, applied: true}
	publisher := &stubPublisher{}
	alerter := &stubAlerter{}
	svc := NewService(provider, store, publisher, alerter, 15*time.Minute, zerolog.Nop())
	return svc, store, publisher, alerter
}

func activeTrip() *domain.Trip {
	return &domain.Trip{
		ID:       "trip-1",
		DriverID: "driver-1",
		Status:   domain.TripStatusInProgress,
	}
}

func TestMaybeRefresh_AttachesWeather(t *testing.T) {
	provider := &stubProvider{snapshot: domain.WeatherSnapshot{
		Temperature: 12.5,
		Condition:   domain.WeatherRain,
		Description: "Light rain",
	}}
	svc, store, publisher, alerter := newWeatherFixture(activeTrip(), provider)

	svc.MaybeRefresh(context.Background(), "trip-1", domain.GeoPoint{Latitude: 40, Longitude: -74})

	require.NotNil(t, store.updated)
	assert.Equal(t, domain.WeatherRain, store.updated.Condition)
	assert.False(t, store.updated.UpdatedAt.IsZero(), "refresh must stamp the snapshot")
	assert.Equal(t, 1, publisher.calls)
	assert.Empty(t, alerter.alerts, "rain is not severe")
}

func TestMaybeRefresh_ThrottledWithinInterval(t *testing.T) {
	trip := activeTrip()
	trip.Weather = &domain.WeatherSnapshot{
		Condition: domain.WeatherClear,
		UpdatedAt: time.Now().Add(-5 * time.Minute),
	}

	provider := &stubProvider{}
	svc, store, _, _ := newWeatherFixture(trip, provider)

	svc.MaybeRefresh(context.Background(), "trip-1", domain.GeoPoint{Latitude: 40, Longitude: -74})

	assert.Zero(t, provider.calls, "provider must not be called within the refresh interval")
	assert.Nil(t, store.updated)
}

func TestMaybeRefresh_RefreshesAfterInterval(t *testing.T) {
	trip := activeTrip()
	trip.Weather = &domain.WeatherSnapshot{
		Condition: domain.WeatherClear,
		UpdatedAt: time.Now().Add(-16 * time.Minute),
	}

	provider := &stubProvider{snapshot: domain.WeatherSnapshot{Condition: domain.WeatherClouds}}
	svc, store, _, _ := newWeatherFixture(trip, provider)

	svc.MaybeRefresh(context.Background(), "trip-1", domain.GeoPoint{Latitude: 40, Longitude: -74})

	assert.Equal(t, 1, provider.calls)
	require.NotNil(t, store.updated)
	assert.Equal(t, domain.WeatherClouds, store.updated.Condition)
}

func TestMaybeRefresh_ProviderFailureKeepsSnapshot(t *testing.T) {
	trip := activeTrip()
	stale := &domain.WeatherSnapshot{
		Condition: domain.WeatherClear,
		UpdatedAt: time.Now().Add(-20 * time.Minute),
	}
	trip.Weather = stale

	provider := &stubProvider{err: errors.New("provider down")}
	svc, store, publisher, _ := newWeatherFixture(trip, provider)

	svc.MaybeRefresh(context.Background(), "trip-1", domain.GeoPoint{Latitude: 40, Longitude: -74})

	assert.Equal(t, 1, provider.calls)
	assert.Nil(t, store.updated, "a failed fetch must not replace the stale snapshot")
	assert.Zero(t, publisher.calls)
}

func TestMaybeRefresh_SevereConditionsRaiseAlert(t *testing.T) {
	provider := &stubProvider{snapshot: domain.WeatherSnapshot{
		Condition:   domain.WeatherThunderstorm,
		Description: "Severe thunderstorm",
	}}
	svc, _, _, alerter := newWeatherFixture(activeTrip(), provider)

	svc.MaybeRefresh(context.Background(), "trip-1", domain.GeoPoint{Latitude: 40, Longitude: -74})

	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, domain.WeatherThunderstorm, alerter.alerts[0].Condition)
}

func TestMaybeRefresh_SkipsInactiveTrip(t *testing.T) {
	trip := activeTrip()
	trip.Status = domain.TripStatusCompleted

	provider := &stubProvider{}
	svc, _, _, _ := newWeatherFixture(trip, provider)

	svc.MaybeRefresh(context.Background(), "trip-1", domain.GeoPoint{Latitude: 40, Longitude: -74})

	assert.Zero(t, provider.calls)
}

func TestMaybeRefresh_TerminalRaceDropsPublish(t *testing.T) {
	provider := &stubProvider{snapshot: domain.WeatherSnapshot{Condition: domain.WeatherClear}}
	svc, store, publisher, _ := newWeatherFixture(activeTrip(), provider)
	store.applied = false

	svc.MaybeRefresh(context.Background(), "trip-1", domain.GeoPoint{Latitude: 40, Longitude: -74})

	assert.Zero(t, publisher.calls, "an unapplied write must not be pushed")
}
