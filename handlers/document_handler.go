package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/esign-platform/services/document"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

type createDocumentRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// DocumentHandler serves the current organization's documents and their
// signing invitations.
type DocumentHandler struct {
	docs        DocumentService
	invitations InvitationService
	logger      *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(docs DocumentService, invitations InvitationService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		docs:        docs,
		invitations: invitations,
		logger:      logger,
	}
}

// HandleList handles GET /api/documents?limit=&offset=
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := tenant(w, r)
	if !ok {
		return
	}

	limit := utils.QueryInt(r, "limit", document.DefaultLimit)
	offset := utils.QueryInt(r, "offset", 0)

	page, err := h.docs.List(r.Context(), orgID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WritePage(w, page.Documents, page.Total)
}

// HandleCreate handles POST /api/documents
func (h *DocumentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, orgID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req createDocumentRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	doc, err := h.docs.Create(r.Context(), orgID, p.UserID, req.Title)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, doc)
}

// HandleGet handles GET /api/documents/{id}
func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := tenant(w, r)
	if !ok {
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteNotFound(w, "document not found")
		return
	}

	doc, err := h.docs.Get(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, doc)
}

// HandleInvite handles POST /api/documents/{id}/invitations
func (h *DocumentHandler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	p, orgID, ok := tenant(w, r)
	if !ok {
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteNotFound(w, "document not found")
		return
	}

	var req inviteRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	details, err := h.invitations.Invite(r.Context(), orgID, p.UserID, id, req.Email)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, details)
}

// HandleListInvitations handles GET /api/documents/{id}/invitations
func (h *DocumentHandler) HandleListInvitations(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := tenant(w, r)
	if !ok {
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteNotFound(w, "document not found")
		return
	}

	invitations, err := h.invitations.ListForDocument(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, invitations)
}
