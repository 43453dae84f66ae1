package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
)

var (
	// ErrNotFound is returned (wrapped) when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned (wrapped) when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// The context passed to fn carries the transaction, so repositories
	// called with it join the transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// OrganizationRepository handles organization data operations
type OrganizationRepository interface {
	// Create creates a new organization
	Create(ctx context.Context, org *models.Organization) error

	// GetByID retrieves an organization by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)

	// GetBySlug retrieves an organization by slug
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// ListForUser retrieves the organizations a user belongs to, with the
	// user's role in each
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.OrganizationMembership, error)
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by normalised email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByGoogleSub retrieves a user by Google subject
	GetByGoogleSub(ctx context.Context, sub string) (*models.User, error)

	// Update updates a user's name, password hash and Google subject
	Update(ctx context.Context, user *models.User) error
}

// MembershipRepository handles organization membership
type MembershipRepository interface {
	// Add creates a membership. Adding an existing member is a no-op and
	// keeps the existing role.
	Add(ctx context.Context, m *models.Membership) error

	// Get retrieves a user's membership in an organization
	Get(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
}

// DocumentRepository handles tenant-scoped documents
type DocumentRepository interface {
	// Create creates a new document
	Create(ctx context.Context, doc *models.Document) error

	// GetByID retrieves a document within an organization
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Document, error)

	// ListByOrg retrieves a page of an organization's documents, newest
	// first, with the total count
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.Document, int, error)

	// UpdateStatus changes a document's status
	UpdateStatus(ctx context.Context, orgID, id uuid.UUID, status models.DocumentStatus) error
}

// InvitationRepository handles signing invitations
type InvitationRepository interface {
	// Create creates a new invitation
	Create(ctx context.Context, inv *models.Invitation) error

	// GetByEmailAndToken retrieves the invitation an invitation link points at
	GetByEmailAndToken(ctx context.Context, email, token string) (*models.Invitation, error)

	// ListByDocument retrieves a document's invitations
	ListByDocument(ctx context.Context, orgID, documentID uuid.UUID) ([]*models.Invitation, error)

	// MarkAccepted marks a pending invitation accepted
	MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AuditRepository handles the organization activity trail
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByOrg retrieves a page of an organization's activity, newest
	// first, with the total count
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, int, error)
}

// RateLimitRepository stores the events sliding-window limits count
type RateLimitRepository interface {
	// Record stores one event for scope
	Record(ctx context.Context, scope string, at time.Time) error

	// CountSince counts the events of scope at or after since
	CountSince(ctx context.Context, scope string, since time.Time) (int, error)

	// OldestSince returns the earliest event of scope at or after since
	OldestSince(ctx context.Context, scope string, since time.Time) (time.Time, error)

	// DeleteBefore removes events older than cutoff and reports how many
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Organizations OrganizationRepository
	Users         UserRepository
	Memberships   MembershipRepository
	Documents     DocumentRepository
	Invitations   InvitationRepository
	Audit         AuditRepository
	RateLimits    RateLimitRepository
}
