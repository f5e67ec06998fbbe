package stream

import (
	"fmt"

	"schooltrack/internal/domain"
)

// Op describes what happened to an entity.
type Op string

const (
	// OpSnapshot marks events replayed as part of a subscription's initial
	// full snapshot.
	OpSnapshot Op = "snapshot"
	OpCreated  Op = "created"
	OpUpdated  Op = "updated"
	OpRemoved  Op = "removed"
)

// Collections carried on the change feed.
const (
	CollectionTrips         = "trips"
	CollectionNotifications = "notifications"
)

// Event is one change delivered to subscribers. Delivery is at-least-once:
// consumers must treat a repeated delivery of the same entity version as a
// no-op.
type Event struct {
	Collection   string               `json:"collection"`
	Op           Op                   `json:"op"`
	ID           string               `json:"id"`
	Version      int64                `json:"version"`
	Trip         *domain.Trip         `json:"trip,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// FilterKind selects which scope a subscription observes.
type FilterKind string

const (
	FilterTrip      FilterKind = "trip"
	FilterDriver    FilterKind = "driver"
	FilterAdmin     FilterKind = "admin"
	FilterRecipient FilterKind = "recipient"
)

// Filter scopes a subscription to one trip, driver, admin or notification
// recipient.
type Filter struct {
	Kind  FilterKind
	Value string
}

// ByTrip scopes a subscription to a single trip.
func ByTrip(tripID string) Filter { return Filter{Kind: FilterTrip, Value: tripID} }

// ByDriver scopes a subscription to a driver's trips.
func ByDriver(driverID string) Filter { return Filter{Kind: FilterDriver, Value: driverID} }

// ByAdmin scopes a subscription to an admin's trips.
func ByAdmin(adminID string) Filter { return Filter{Kind: FilterAdmin, Value: adminID} }

// ByRecipient scopes a subscription to a user's notifications.
func ByRecipient(userID string) Filter { return Filter{Kind: FilterRecipient, Value: userID} }

// Valid reports whether the filter names a known kind and a non-empty value.
func (f Filter) Valid() bool {
	switch f.Kind {
	case FilterTrip, FilterDriver, FilterAdmin, FilterRecipient:
		return f.Value != ""
	}
	return false
}

// Channel returns the feed channel the filter maps to.
func (f Filter) Channel() string {
	return fmt.Sprintf("changes:%s:%s", f.Kind, f.Value)
}

// TripChannels returns every channel a trip change fans out to.
func TripChannels(t *domain.Trip) []string {
	channels := []string{
		ByTrip(t.ID).Channel(),
		ByDriver(t.DriverID).Channel(),
	}
	if t.AdminID != "" {
		channels = append(channels, ByAdmin(t.AdminID).Channel())
	}
	return channels
}
