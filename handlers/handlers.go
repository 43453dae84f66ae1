// Package handlers holds the thin HTTP layer: decode, validate, call a
// service, write the envelope.
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/middleware"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/services/audit"
	"github.com/upb/esign-platform/services/auth"
	"github.com/upb/esign-platform/services/document"
	"github.com/upb/esign-platform/services/invitation"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

// AuthService is the sign-up and sign-in surface used by AuthHandler.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	LoginWithGoogle(ctx context.Context, creds auth.GoogleCredentials) (*auth.Result, error)
	Me(ctx context.Context, userID uuid.UUID) (*auth.Profile, error)
}

// OrganizationService lists and creates the caller's organizations.
type OrganizationService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.OrganizationMembership, error)
	Create(ctx context.Context, userID uuid.UUID, name, slug string) (*models.OrganizationMembership, error)
}

// DocumentService manages tenant-scoped documents.
type DocumentService interface {
	Create(ctx context.Context, orgID, ownerID uuid.UUID, title string) (*models.Document, error)
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) (*document.Page, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Document, error)
}

// InvitationService sends and redeems signing invitations.
type InvitationService interface {
	Invite(ctx context.Context, orgID, inviterID, documentID uuid.UUID, email string) (*invitation.Details, error)
	Lookup(ctx context.Context, email, token string) (*invitation.Details, error)
	Accept(ctx context.Context, userID uuid.UUID, email, token string) (*models.OrganizationMembership, error)
	ListForDocument(ctx context.Context, orgID, documentID uuid.UUID) ([]*models.Invitation, error)
}

// ActivityService reads an organization's activity trail.
type ActivityService interface {
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) (*audit.Page, error)
}

// decodeAndValidate reads the JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		logger.Debug("invalid request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}

// principal returns the authenticated caller or writes 401.
func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return p, true
}

// tenant returns the caller and the current organization, or writes an
// error.
func tenant(w http.ResponseWriter, r *http.Request) (*auth.Principal, uuid.UUID, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, uuid.Nil, false
	}
	orgID := middleware.GetOrgIDFromContext(r.Context())
	if orgID == uuid.Nil {
		_ = utils.WriteBadRequest(w, "X-Tenant-Id header is required")
		return nil, uuid.Nil, false
	}
	return p, orgID, true
}
