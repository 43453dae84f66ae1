package handlers

import (
	"net/http"

	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

type createOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,max=63"`
}

// OrganizationHandler serves the caller's organizations.
type OrganizationHandler struct {
	orgs   OrganizationService
	logger *zap.Logger
}

// NewOrganizationHandler creates a new OrganizationHandler
func NewOrganizationHandler(orgs OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, logger: logger}
}

// HandleList handles GET /api/organizations
func (h *OrganizationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	orgs, err := h.orgs.List(r.Context(), p.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, orgs)
}

// HandleCreate handles POST /api/organizations. The caller becomes admin.
func (h *OrganizationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req createOrganizationRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	org, err := h.orgs.Create(r.Context(), p.UserID, req.Name, req.Slug)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, org)
}
