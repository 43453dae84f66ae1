package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/services"
	"github.com/upb/esign-platform/services/auth"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

// TenantHeader carries the current organization id.
const TenantHeader = "X-Tenant-Id"

// TokenValidator defines the interface for validating API tokens
type TokenValidator interface {
	Verify(token string) (*auth.Principal, error)
}

// MembershipChecker looks up a user's membership in an organization
type MembershipChecker interface {
	Membership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator  TokenValidator
	cookieName string
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. cookieName is the session
// cookie accepted when no Authorization header is sent.
func NewAuthMiddleware(validator TokenValidator, cookieName string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator:  validator,
		cookieName: cookieName,
		logger:     logger,
	}
}

// RequireAuth is a middleware that requires a valid API token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := m.extractToken(r)
		if token == "" {
			m.logger.Debug("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		principal, err := m.validator.Verify(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithPrincipal(ctx, principal)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", principal.UserID.String()))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTenant is a middleware that resolves the organization named by the
// X-Tenant-Id header and checks the caller belongs to it. It must run after
// RequireAuth.
func (m *AuthMiddleware) RequireTenant(members MembershipChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			principal := GetPrincipalFromContext(ctx)
			if principal == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			raw := strings.TrimSpace(r.Header.Get(TenantHeader))
			if raw == "" {
				_ = utils.WriteBadRequest(w, "X-Tenant-Id header is required")
				return
			}
			orgID, err := uuid.Parse(raw)
			if err != nil {
				_ = utils.WriteBadRequest(w, "X-Tenant-Id must be an organization id")
				return
			}

			membership, err := members.Membership(ctx, orgID, principal.UserID)
			if err != nil {
				if services.IsForbiddenError(err) || services.IsNotFoundError(err) {
					m.logger.Warn("tenant access denied",
						zap.String("request_id", requestID),
						zap.String("org_id", orgID.String()),
						zap.String("user_id", principal.UserID.String()))
					_ = utils.WriteForbidden(w, "You are not a member of this organization")
					return
				}
				m.logger.Error("membership lookup failed",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
				return
			}

			ctx = WithOrgID(ctx, orgID)
			ctx = WithMembership(ctx, membership)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole is a middleware that requires a role in the current
// organization. It must run after RequireTenant.
func (m *AuthMiddleware) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			membership := GetMembershipFromContext(r.Context())
			if membership == nil || (membership.Role != role && !membership.IsAdmin()) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("required_role", string(role)))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the token from the Authorization header ("Bearer
// TOKEN") or the session cookie. The header takes precedence.
func (m *AuthMiddleware) extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if m.cookieName != "" {
		if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
