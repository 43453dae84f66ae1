package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the signing state of a document.
type DocumentStatus string

const (
	DocumentDraft     DocumentStatus = "draft"
	DocumentSent      DocumentStatus = "sent"
	DocumentCompleted DocumentStatus = "completed"
)

// Document is a tenant-scoped document that signers are invited to.
type Document struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	OrgID     uuid.UUID      `json:"org_id" db:"org_id"`
	OwnerID   uuid.UUID      `json:"owner_id" db:"owner_id"`
	Title     string         `json:"title" db:"title"`
	Status    DocumentStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// NewDocument creates a draft document
func NewDocument(orgID, ownerID uuid.UUID, title string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:        uuid.New(),
		OrgID:     orgID,
		OwnerID:   ownerID,
		Title:     strings.TrimSpace(title),
		Status:    DocumentDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
