package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of organization activity recorded.
type AuditAction string

const (
	AuditActionOrganizationCreated AuditAction = "organization_created"
	AuditActionDocumentCreated     AuditAction = "document_created"
	AuditActionInvitationSent      AuditAction = "invitation_sent"
	AuditActionInvitationAccepted  AuditAction = "invitation_accepted"
)

// Resource types an audit entry can point at.
const (
	ResourceOrganization = "organization"
	ResourceDocument     = "document"
	ResourceInvitation   = "invitation"
)

// AuditLog is one entry of an organization's activity trail.
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrgID        uuid.UUID       `json:"org_id" db:"org_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	RequestID    string          `json:"request_id,omitempty" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates an entry stamped with the current time.
func NewAuditLog(orgID uuid.UUID, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		OrgID:        orgID,
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now().UTC(),
	}
}

// WithUser sets the acting user.
func (a *AuditLog) WithUser(userID uuid.UUID) *AuditLog {
	a.UserID = &userID
	return a
}

// WithResource sets the resource the action applied to.
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets free-form details. Values that cannot be encoded are
// dropped.
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets the id of the request that caused the action.
func (a *AuditLog) WithRequest(requestID string) *AuditLog {
	a.RequestID = requestID
	return a
}
