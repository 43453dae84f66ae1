package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a user within an organization
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Membership links a user to an organization.
type Membership struct {
	OrgID     uuid.UUID `json:"org_id" db:"org_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Membership model
func (Membership) TableName() string {
	return "memberships"
}

// NewMembership creates a new Membership instance
func NewMembership(orgID, userID uuid.UUID, role Role) *Membership {
	return &Membership{
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
}

// IsAdmin returns true if the membership has the admin role
func (m *Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}
