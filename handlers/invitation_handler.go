package handlers

import (
	"net/http"

	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

type invitationRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

// InvitationHandler serves the invitation landing: lookup is public, accept
// requires a signed-in user.
type InvitationHandler struct {
	invitations InvitationService
	logger      *zap.Logger
}

// NewInvitationHandler creates a new InvitationHandler
func NewInvitationHandler(invitations InvitationService, logger *zap.Logger) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, logger: logger}
}

// HandleLookup handles GET /api/invitations/lookup?email=&token=
func (h *InvitationHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	req := invitationRequest{
		Email: r.URL.Query().Get("email"),
		Token: r.URL.Query().Get("token"),
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	details, err := h.invitations.Lookup(r.Context(), req.Email, req.Token)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, details)
}

// HandleAccept handles POST /api/invitations/accept and returns the joined
// organization.
func (h *InvitationHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req invitationRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	org, err := h.invitations.Accept(r.Context(), p.UserID, req.Email, req.Token)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, org)
}
