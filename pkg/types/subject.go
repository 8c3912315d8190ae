package types

import "time"

// Role identifies the kind of subject interacting with the vault
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether the role is one the vault recognizes
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Subject represents an authenticated principal: a patient who owns reports
// or a doctor who receives disclosure grants
type Subject struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Specialization string    `json:"specialization,omitempty"`
	LicenseNumber  string    `json:"license_number,omitempty"`
	Hospital       string    `json:"hospital,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuthToken is the session credential issued after a successful login
type AuthToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SubjectID string    `json:"subject_id"`
	Role      Role      `json:"role"`
}
