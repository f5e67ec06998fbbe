package domain

import "time"

// TripStatus represents the lifecycle status of a trip.
//
// NOT_STARTED is implicit: no trip record exists before the driver starts
// the route. Transitions are strictly forward and terminal states admit no
// further mutation of core fields.
type TripStatus string

const (
	TripStatusNotStarted TripStatus = "NOT_STARTED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s TripStatus) Terminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// Trip represents one run of a driver along an assigned route.
type Trip struct {
	ID                string           `json:"id"`
	DriverID          string           `json:"driver_id"`
	DriverName        string           `json:"driver_name,omitempty"`
	RouteID           string           `json:"route_id"`
	AdminID           string           `json:"admin_id,omitempty"`
	Status            TripStatus       `json:"status"`
	StartTime         time.Time        `json:"start_time"`
	EndTime           time.Time        `json:"end_time,omitzero"`
	CancelReason      string           `json:"cancel_reason,omitempty"`
	CurrentLocation   *GeoPoint        `json:"current_location,omitempty"`
	LocationUpdatedAt time.Time        `json:"location_updated_at,omitzero"`
	StudentsOnboard   []string         `json:"students_onboard"`
	StudentsExited    []string         `json:"students_exited"`
	Weather           *WeatherSnapshot `json:"weather,omitempty"`
}

// BoardingState is the status of a student relative to a specific trip,
// derived from the trip's per-student state rows. Transitions run strictly
// forward: WAITING -> ONBOARD -> EXITED.
type BoardingState string

const (
	BoardingWaiting BoardingState = "WAITING"
	BoardingOnboard BoardingState = "ONBOARD"
	BoardingExited  BoardingState = "EXITED"
)

// CanTransition reports whether moving from s to next is a legal forward step.
func (s BoardingState) CanTransition(next BoardingState) bool {
	switch s {
	case BoardingWaiting:
		return next == BoardingOnboard
	case BoardingOnboard:
		return next == BoardingExited
	default:
		return false
	}
}
