package domain

import "time"

// NotificationType classifies a notification record.
type NotificationType string

const (
	NotificationTripStarted     NotificationType = "trip_started"
	NotificationTripEnded       NotificationType = "trip_ended"
	NotificationBusApproaching  NotificationType = "bus_approaching"
	NotificationStudentOnboard  NotificationType = "student_onboard"
	NotificationStudentDropoff  NotificationType = "student_dropoff"
	NotificationStudentBehavior NotificationType = "student_behavior"
	NotificationEmergency       NotificationType = "emergency"
	NotificationWeatherAlert    NotificationType = "weather_alert"
)

// Notification is a per-recipient record created by the dispatcher. The
// recipient may flip the read flag (false -> true, once); the core never
// deletes notifications.
type Notification struct {
	ID              string           `json:"id"`
	RecipientUserID string           `json:"user_id"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Read            bool             `json:"read"`
	CreatedAt       time.Time        `json:"created_at"`
	Type            NotificationType `json:"type"`
	StudentID       string           `json:"student_id,omitempty"`
	DriverID        string           `json:"driver_id,omitempty"`
	TripID          string           `json:"trip_id,omitempty"`
}
