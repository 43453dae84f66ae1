package handlers

import (
	"net/http"
	"time"

	"github.com/upb/esign-platform/services/auth"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

// SessionCookie describes the cookie that carries the API token for browser
// clients.
type SessionCookie struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

type registerRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	OrganizationName string `json:"organization_name" validate:"omitempty,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthHandler serves sign-up, sign-in and the current user.
type AuthHandler struct {
	auth   AuthService
	cookie SessionCookie
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(svc AuthService, cookie SessionCookie, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   svc,
		cookie: cookie,
		logger: logger,
	}
}

// HandleRegister handles POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	result, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.setSession(w, result)
	_ = utils.WriteCreated(w, result)
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.setSession(w, result)
	_ = utils.WriteOK(w, result)
}

// HandleGoogleMobile handles POST /api/auth/google/mobile. Any one of
// id_token, access_token or code is accepted.
func (h *AuthHandler) HandleGoogleMobile(w http.ResponseWriter, r *http.Request) {
	var req auth.GoogleCredentials
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	result, err := h.auth.LoginWithGoogle(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.setSession(w, result)
	_ = utils.WriteOK(w, result)
}

// HandleLogout handles POST /api/auth/logout. Tokens are stateless, so this
// only clears the session cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if h.cookie.Name != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookie.Name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	_ = utils.WriteMessage(w, "Logged out")
}

// HandleMe handles GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	profile, err := h.auth.Me(r.Context(), p.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, profile)
}

func (h *AuthHandler) setSession(w http.ResponseWriter, result *auth.Result) {
	if h.cookie.Name == "" {
		return
	}
	maxAge := int(h.cookie.MaxAge.Seconds())
	if !result.ExpiresAt.IsZero() {
		maxAge = int(time.Until(result.ExpiresAt).Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
