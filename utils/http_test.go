package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "test", decodeEnvelope(t, w)["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteOK(w, map[string]string{"id": "123"}))

	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(200), body["status"])
	assert.Equal(t, "123", body["data"].(map[string]interface{})["id"])
	assert.NotContains(t, body, "errors")
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteCreated(w, map[string]string{"id": "123"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(201), decodeEnvelope(t, w)["status"])
}

func TestWritePage(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WritePage(w, []string{"a", "b"}, 7))

	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"a", "b"}, data["data"])
	assert.Equal(t, float64(7), data["total"])
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteMessage(w, "Logged out"))

	body := decodeEnvelope(t, w)
	assert.Equal(t, "Logged out", body["message"])
	assert.NotContains(t, body, "data")
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name        string
		write       func(w http.ResponseWriter) error
		wantStatus  int
		wantMessage string
	}{
		{"bad request", func(w http.ResponseWriter) error { return WriteBadRequest(w, "bad json") }, http.StatusBadRequest, "bad json"},
		{"unauthorized default", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, http.StatusUnauthorized, "Authentication required"},
		{"forbidden default", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, http.StatusForbidden, "Access forbidden"},
		{"not found default", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "Resource not found"},
		{"conflict", func(w http.ResponseWriter) error { return WriteConflict(w, "slug taken") }, http.StatusConflict, "slug taken"},
		{"internal default", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "Internal server error"},
		{"too many requests default", func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "", 0) }, http.StatusTooManyRequests, "Too many requests"},
		{"status text fallback", func(w http.ResponseWriter) error { return WriteError(w, http.StatusBadGateway, "", nil) }, http.StatusBadGateway, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeEnvelope(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, tt.wantMessage, body["message"])
		})
	}
}

func TestWriteTooManyRequestsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteTooManyRequests(w, "slow down", 42))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	assert.Equal(t, "slow down", decodeEnvelope(t, w)["message"])
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteValidationError(w, "", map[string][]string{"email": {"email is required"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "The given data was invalid.", body["message"])
	assert.Equal(t, map[string]interface{}{"email": []interface{}{"email is required"}}, body["errors"])
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"NDA"}`))
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "NDA", dst.Title)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(r, &dst))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	assert.Error(t, DecodeJSON(r, &dst))
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?"+url.Values{"limit": {"5"}, "offset": {"x"}}.Encode(), nil)

	assert.Equal(t, 5, QueryInt(r, "limit", 20))
	assert.Equal(t, 0, QueryInt(r, "offset", 0))
	assert.Equal(t, 9, QueryInt(r, "missing", 9))
}
