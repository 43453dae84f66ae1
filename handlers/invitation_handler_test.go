package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/services"
	"github.com/upb/esign-platform/services/invitation"
	"go.uber.org/zap"
)

func TestInvitationHandler_Lookup(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		invitations := new(MockInvitationService)
		h := NewInvitationHandler(invitations, zap.NewNop())
		inv := models.NewInvitation(uuid.New(), uuid.New(), uuid.New(), "signer@example.com", 0)
		invitations.On("Lookup", mock.Anything, "signer@example.com", "tok").Return(&invitation.Details{
			Invitation:       inv,
			DocumentTitle:    "NDA",
			OrganizationName: "Acme",
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/invitations/lookup?email=signer%40example.com&token=tok", nil)
		w := httptest.NewRecorder()

		h.HandleLookup(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeEnvelope(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "Acme", data["organization_name"])
		invitations.AssertExpectations(t)
	})

	t.Run("unknown or expired", func(t *testing.T) {
		invitations := new(MockInvitationService)
		h := NewInvitationHandler(invitations, zap.NewNop())
		invitations.On("Lookup", mock.Anything, "signer@example.com", "tok").Return(nil, services.ErrInvitationNotFound)

		req := httptest.NewRequest(http.MethodGet, "/api/invitations/lookup?email=signer%40example.com&token=tok", nil)
		w := httptest.NewRecorder()

		h.HandleLookup(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "invitation not found or expired", decodeEnvelope(t, w)["message"])
	})

	t.Run("missing token", func(t *testing.T) {
		h := NewInvitationHandler(new(MockInvitationService), zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/invitations/lookup?email=signer%40example.com", nil)
		w := httptest.NewRecorder()

		h.HandleLookup(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		errs := decodeEnvelope(t, w)["errors"].(map[string]interface{})
		assert.Contains(t, errs, "token")
	})
}

func TestInvitationHandler_Accept(t *testing.T) {
	userID := uuid.New()
	body := `{"email":"signer@example.com","token":"tok"}`

	t.Run("joins organization", func(t *testing.T) {
		invitations := new(MockInvitationService)
		h := NewInvitationHandler(invitations, zap.NewNop())
		invitations.On("Accept", mock.Anything, userID, "signer@example.com", "tok").Return(&models.OrganizationMembership{
			Organization: *models.NewOrganization("Acme", "acme"),
			Role:         models.RoleMember,
		}, nil)

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/invitations/accept", strings.NewReader(body)), userID, uuid.Nil)
		w := httptest.NewRecorder()

		h.HandleAccept(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeEnvelope(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "acme", data["slug"])
		assert.Equal(t, "member", data["role"])
	})

	t.Run("already accepted", func(t *testing.T) {
		invitations := new(MockInvitationService)
		h := NewInvitationHandler(invitations, zap.NewNop())
		invitations.On("Accept", mock.Anything, userID, "signer@example.com", "tok").Return(nil, services.ErrInvitationAccepted)

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/invitations/accept", strings.NewReader(body)), userID, uuid.Nil)
		w := httptest.NewRecorder()

		h.HandleAccept(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("email mismatch", func(t *testing.T) {
		invitations := new(MockInvitationService)
		h := NewInvitationHandler(invitations, zap.NewNop())
		invitations.On("Accept", mock.Anything, userID, "signer@example.com", "tok").Return(nil, services.ErrInvitationEmailMismatch)

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/invitations/accept", strings.NewReader(body)), userID, uuid.Nil)
		w := httptest.NewRecorder()

		h.HandleAccept(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("requires sign in", func(t *testing.T) {
		h := NewInvitationHandler(new(MockInvitationService), zap.NewNop())

		req := httptest.NewRequest(http.MethodPost, "/api/invitations/accept", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.HandleAccept(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
