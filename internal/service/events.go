// Package service implements the trip tracking core: lifecycle transitions,
// location sampling, boarding state, behavior reports and the notification
// dispatch that fans out from all of them.
package service

import (
	"context"
	"time"

	"schooltrack/internal/domain"
	"schooltrack/internal/stream"
)

// EventType classifies an internal domain event emitted by the core services
// and consumed by the notification dispatcher.
type EventType string

const (
	EventTripStarted      EventType = "trip_started"
	EventTripEnded        EventType = "trip_ended"
	EventTripCancelled    EventType = "trip_cancelled"
	EventLocationStale    EventType = "location_stale"
	EventStudentOnboard   EventType = "student_onboard"
	EventStudentDropoff   EventType = "student_dropoff"
	EventBehaviorReported EventType = "behavior_reported"
	EventBusApproaching   EventType = "bus_approaching"
	EventEmergency        EventType = "emergency"
	EventWeatherAlert     EventType = "weather_alert"
)

// Event is one domain occurrence handed to the dispatcher. Which fields are
// set depends on the type; Trip is always present.
type Event struct {
	Type      EventType
	Trip      *domain.Trip
	StudentID string
	Behavior  *domain.BehaviorReport
	Weather   *domain.WeatherSnapshot
	Detail    string
}

// EventSink turns domain events into per-recipient notifications. It returns
// the ids of the notifications it created, mainly for logging.
type EventSink interface {
	Emit(ctx context.Context, ev Event) []string
}

// ChangePublisher pushes committed mutations to the subscription layer.
type ChangePublisher interface {
	TripChanged(ctx context.Context, t *domain.Trip, op stream.Op)
	NotificationChanged(ctx context.Context, n *domain.Notification, op stream.Op)
}

// StreamSource opens filtered change subscriptions. The sampler uses one to
// observe its own trip reaching a terminal state.
type StreamSource interface {
	Subscribe(ctx context.Context, f stream.Filter) (*stream.Subscription, error)
}

// PositionSource supplies the latest device-reported fix for a driver.
type PositionSource interface {
	Latest(ctx context.Context, driverID string) (domain.GeoPoint, time.Time, error)
}

// WeatherRefresher attaches throttled weather to a trip at a location.
type WeatherRefresher interface {
	MaybeRefresh(ctx context.Context, tripID string, loc domain.GeoPoint)
}
