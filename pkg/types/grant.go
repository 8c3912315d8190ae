package types

import "time"

// GrantStatus represents the lifecycle state of a disclosure grant
type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "active"
	GrantStatusExpired GrantStatus = "expired"
	GrantStatusRevoked GrantStatus = "revoked"
)

// DisclosureGrant is a time-boxed, revocable authorization for one doctor to
// view one report. Grants only move forward: active to expired (by time) or
// active to revoked (by owner action). Revoked and expired grants are kept as
// an audit trail; re-sharing creates a new grant row.
type DisclosureGrant struct {
	ID          string      `json:"id"`
	ReportID    string      `json:"report_id"`
	OwnerID     string      `json:"owner_id"`
	DoctorID    string      `json:"doctor_id"`
	GrantedAt   time.Time   `json:"granted_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	RevokedAt   *time.Time  `json:"revoked_at,omitempty"`
	Annotation  *string     `json:"annotation,omitempty"`
	AnnotatedAt *time.Time  `json:"annotated_at,omitempty"`
	Status      GrantStatus `json:"status"`
}

// ActiveAt reports whether the grant authorizes access at the given instant
func (g *DisclosureGrant) ActiveAt(now time.Time) bool {
	if g.Status != GrantStatusActive || g.RevokedAt != nil {
		return false
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return false
	}
	return true
}

// ShareResult is returned to the owner after a successful share
type ShareResult struct {
	GrantID   string     `json:"grant_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RevokeResult is returned to the owner after a successful revoke
type RevokeResult struct {
	GrantID   string    `json:"grant_id"`
	RevokedAt time.Time `json:"revoked_at"`
}

// AccessibleReport is the doctor-facing view of an active grant joined with
// report and owner metadata. The encryption key never appears here.
type AccessibleReport struct {
	GrantID     string     `json:"grant_id"`
	ReportID    string     `json:"report_id"`
	FileName    string     `json:"file_name"`
	ContentHash string     `json:"content_hash"`
	OwnerID     string     `json:"owner_id"`
	OwnerName   string     `json:"owner_name"`
	OwnerEmail  string     `json:"owner_email"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}
