package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/services/auth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated caller
	PrincipalKey contextKey = "principal"

	// OrgIDKey is the context key for organization ID
	OrgIDKey contextKey = "org_id"

	// MembershipKey is the context key for the caller's membership in the
	// current organization
	MembershipKey contextKey = "membership"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID
// middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetPrincipalFromContext retrieves the authenticated caller from context
func GetPrincipalFromContext(ctx context.Context) *auth.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if p, ok := val.(*auth.Principal); ok {
			return p
		}
	}
	return nil
}

// WithPrincipal adds the authenticated caller to the context
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetUserIDFromContext retrieves the authenticated user's ID, or uuid.Nil
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	if p := GetPrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return uuid.Nil
}

// GetOrgIDFromContext retrieves the organization ID from context
func GetOrgIDFromContext(ctx context.Context) uuid.UUID {
	if val := ctx.Value(OrgIDKey); val != nil {
		if orgID, ok := val.(uuid.UUID); ok {
			return orgID
		}
	}
	return uuid.Nil
}

// WithOrgID adds an organization ID to the context
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// GetMembershipFromContext retrieves the caller's membership from context
func GetMembershipFromContext(ctx context.Context) *models.Membership {
	if val := ctx.Value(MembershipKey); val != nil {
		if m, ok := val.(*models.Membership); ok {
			return m
		}
	}
	return nil
}

// WithMembership adds the caller's membership to the context
func WithMembership(ctx context.Context, m *models.Membership) context.Context {
	return context.WithValue(ctx, MembershipKey, m)
}
