package domain

import "time"

// Student is reference data owned by the directory; the core only reads it.
type Student struct {
	ID           string   `json:"id"`
	FullName     string   `json:"full_name"`
	Grade        string   `json:"grade,omitempty"`
	School       string   `json:"school,omitempty"`
	ParentID     string   `json:"parent_id"`
	DriverID     string   `json:"driver_id"`
	AdminID      string   `json:"admin_id,omitempty"`
	HomeLocation GeoPoint `json:"home_location"`
}

// RouteStop binds a student to a pickup point with an externally supplied
// estimated time. Nothing in the core recomputes the estimate.
type RouteStop struct {
	StudentID     string    `json:"student_id"`
	Location      GeoPoint  `json:"location"`
	EstimatedTime time.Time `json:"estimated_time"`
}

// Route is the ordered stop list assigned to a driver.
type Route struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	DriverID string      `json:"driver_id"`
	BusID    string      `json:"bus_id,omitempty"`
	AdminID  string      `json:"admin_id"`
	Students []string    `json:"students"`
	Stops    []RouteStop `json:"stops"`
}
