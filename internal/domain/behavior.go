package domain

import "time"

// BehaviorType classifies a behavior report filed by a driver.
type BehaviorType string

const (
	BehaviorMisconduct BehaviorType = "misconduct"
	BehaviorBullying   BehaviorType = "bullying"
	BehaviorDisruptive BehaviorType = "disruptive"
	BehaviorPositive   BehaviorType = "positive"
	BehaviorOther      BehaviorType = "other"
)

// ValidBehaviorType reports whether t is a known behavior type.
func ValidBehaviorType(t BehaviorType) bool {
	switch t {
	case BehaviorMisconduct, BehaviorBullying, BehaviorDisruptive, BehaviorPositive, BehaviorOther:
		return true
	}
	return false
}

// BehaviorReportStatus is the review status of a behavior report.
type BehaviorReportStatus string

const (
	BehaviorStatusPending  BehaviorReportStatus = "pending"
	BehaviorStatusReviewed BehaviorReportStatus = "reviewed"
	BehaviorStatusResolved BehaviorReportStatus = "resolved"
)

// BehaviorReport records a driver's observation about a student during a trip.
type BehaviorReport struct {
	ID          string               `json:"id"`
	StudentID   string               `json:"student_id"`
	DriverID    string               `json:"driver_id"`
	DriverName  string               `json:"driver_name,omitempty"`
	TripID      string               `json:"trip_id"`
	Type        BehaviorType         `json:"type"`
	Description string               `json:"description"`
	Status      BehaviorReportStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
}
