package domain

// Role is a user's role in the system.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
	RoleParent Role = "parent"
)

// User is reference data owned by the identity provider / directory.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	Approved    bool   `json:"approved"`
	PhoneNumber string `json:"phone_number,omitempty"`
	AdminID     string `json:"admin_id,omitempty"`
}

// Actor is a pre-resolved authenticated identity. The core never
// authenticates; it accepts the actor the identity provider resolved.
type Actor struct {
	UserID string
	Role   Role
}
