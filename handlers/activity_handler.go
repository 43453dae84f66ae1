package handlers

import (
	"net/http"

	"github.com/upb/esign-platform/services/audit"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

// ActivityHandler serves the current organization's activity trail.
type ActivityHandler struct {
	activity ActivityService
	logger   *zap.Logger
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activity ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, logger: logger}
}

// HandleList handles GET /api/activity?limit=&offset=
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := tenant(w, r)
	if !ok {
		return
	}

	limit := utils.QueryInt(r, "limit", audit.DefaultLimit)
	offset := utils.QueryInt(r, "offset", 0)

	page, err := h.activity.List(r.Context(), orgID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WritePage(w, page.Entries, page.Total)
}
