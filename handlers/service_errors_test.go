package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/esign-platform/services"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "not found error",
			err:             services.ErrDocumentNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "document not found",
		},
		{
			name:            "validation error",
			err:             services.ErrInvalidInput,
			expectedStatus:  http.StatusUnprocessableEntity,
			expectedMessage: "invalid input",
		},
		{
			name:            "unauthorized error",
			err:             services.ErrInvalidCredentials,
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "invalid email or password",
		},
		{
			name:            "forbidden error",
			err:             services.ErrNotMember,
			expectedStatus:  http.StatusForbidden,
			expectedMessage: "not a member of this organization",
		},
		{
			name:            "conflict error",
			err:             services.ErrDuplicateSlug,
			expectedStatus:  http.StatusConflict,
			expectedMessage: "slug already exists",
		},
		{
			name:            "external error",
			err:             services.ErrGoogleUnavailable.Wrap(errors.New("dial tcp: timeout")),
			expectedStatus:  http.StatusBadGateway,
			expectedMessage: "Google sign-in unavailable",
		},
		{
			name:            "internal error hides cause",
			err:             services.ErrDatabaseError.Wrap(errors.New("pq: relation does not exist")),
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "An internal error occurred",
		},
		{
			name:            "unknown error",
			err:             errors.New("some unknown error"),
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			response := decodeEnvelope(t, w)
			assert.Equal(t, false, response["success"])
			assert.Equal(t, float64(tt.expectedStatus), response["status"])
			assert.Equal(t, tt.expectedMessage, response["message"])
		})
	}
}

func TestHandleServiceErrorFieldDetail(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.ErrInvalidSlug.ForField("slug"), zap.NewNop())

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	response := decodeEnvelope(t, w)
	errs := response["errors"].(map[string]interface{})
	assert.Equal(t, []interface{}{"invalid slug format"}, errs["slug"])
}

func TestHandleServiceErrorRateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.ErrRateLimited.Wrap(nil).WithDetail("retry_after", 90), zap.NewNop())

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
	assert.Equal(t, "too many attempts, try again later", decodeEnvelope(t, w)["message"])
}

func TestHandleServiceErrorNil(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, nil, zap.NewNop())

	// Should not write anything
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("field errors", func(t *testing.T) {
		err := &utils.ValidationError{
			Message: "The given data was invalid.",
			Fields: map[string][]string{
				"email": {"The email field is required."},
			},
		}

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		response := decodeEnvelope(t, w)
		assert.Equal(t, "The given data was invalid.", response["message"])
		errs := response["errors"].(map[string]interface{})
		assert.Equal(t, []interface{}{"The email field is required."}, errs["email"])
	})

	t.Run("generic error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("generic validation error"), logger)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		response := decodeEnvelope(t, w)
		assert.Equal(t, "generic validation error", response["message"])
	})

	t.Run("routed from HandleServiceError", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleServiceError(w, utils.FieldError("token", "The token field is required."), logger)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
