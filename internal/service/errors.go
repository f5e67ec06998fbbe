package service

import "errors"

// Service-level sentinel errors. Handlers map these onto HTTP statuses.
var (
	ErrInvalidDriverID     = errors.New("invalid driver ID")
	ErrInvalidTripID       = errors.New("invalid trip ID")
	ErrInvalidStudentID    = errors.New("invalid student ID")
	ErrInvalidLocation     = errors.New("invalid location")
	ErrInvalidBehaviorType = errors.New("invalid behavior type")
	ErrNoRouteAssigned     = errors.New("driver has no route assigned")
	ErrTripAlreadyActive   = errors.New("driver already has an active trip")
	ErrTripNotFound        = errors.New("trip not found")
	ErrTripNotActive       = errors.New("trip is not in progress")
	ErrStudentNotOnTrip    = errors.New("student is not on this trip")
	ErrNotRecipient        = errors.New("notification belongs to another user")
)
