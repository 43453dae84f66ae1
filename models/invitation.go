package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is the state of a signing invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
)

// DefaultInvitationTTL is how long an invitation link stays valid.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Invitation asks an email address to join an organization and sign a
// document. Token is the secret carried by the invitation link.
type Invitation struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	OrgID      uuid.UUID        `json:"org_id" db:"org_id"`
	DocumentID uuid.UUID        `json:"document_id" db:"document_id"`
	InvitedBy  uuid.UUID        `json:"invited_by" db:"invited_by"`
	Email      string           `json:"email" db:"email"`
	Token      string           `json:"-" db:"token"`
	Status     InvitationStatus `json:"status" db:"status"`
	ExpiresAt  time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Invitation model
func (Invitation) TableName() string {
	return "invitations"
}

// NewInvitation creates a pending invitation with a fresh random token.
func NewInvitation(orgID, documentID, invitedBy uuid.UUID, email string, ttl time.Duration) *Invitation {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	now := time.Now().UTC()
	return &Invitation{
		ID:         uuid.New(),
		OrgID:      orgID,
		DocumentID: documentID,
		InvitedBy:  invitedBy,
		Email:      NormalizeEmail(email),
		Token:      uuid.NewString(),
		Status:     InvitationPending,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
}

// IsExpired reports whether the invitation is past its expiry at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsPending reports whether the invitation can still be accepted.
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationPending
}
