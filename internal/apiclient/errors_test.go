package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: "boom"},
		{
			name: "string body",
			err:  &APIError{StatusCode: 502, Data: "Bad Gateway"},
			want: "Bad Gateway",
		},
		{
			name: "message",
			err:  &APIError{StatusCode: 401, Data: map[string]any{"message": "Invalid credentials", "error": "ignored"}},
			want: "Invalid credentials",
		},
		{
			name: "blank message falls through to error",
			err:  &APIError{StatusCode: 400, Data: map[string]any{"message": "  ", "error": "Bad request"}},
			want: "Bad request",
		},
		{
			name: "errors list",
			err:  &APIError{StatusCode: 400, Data: map[string]any{"errors": []any{"a", "b"}}},
			want: "a, b",
		},
		{
			name: "errors map",
			err: &APIError{StatusCode: 422, Data: map[string]any{
				"errors": map[string]any{"email": []any{"required", "invalid"}},
			}},
			want: "email: required, invalid",
		},
		{
			name: "errors map with several fields is ordered by field",
			err: &APIError{StatusCode: 422, Data: map[string]any{
				"errors": map[string]any{
					"password": []any{"too short"},
					"email":    "taken",
				},
			}},
			want: "email: taken; password: too short",
		},
		{
			name: "errors map with non-string values",
			err: &APIError{StatusCode: 422, Data: map[string]any{
				"errors": map[string]any{"limit": float64(10), "meta": map[string]any{"k": "v"}},
			}},
			want: `limit: 10; meta: {"k":"v"}`,
		},
		{
			name: "unrecognised body",
			err:  &APIError{StatusCode: 500, Data: map[string]any{"trace": "x"}},
			want: "request failed with status code 500",
		},
		{
			name: "no body",
			err:  &APIError{StatusCode: 404},
			want: "request failed with status code 404",
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("list documents: %w", &APIError{StatusCode: 403, Data: map[string]any{"message": "Forbidden"}}),
			want: "Forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	t.Run("prefix is added", func(t *testing.T) {
		err := &APIError{StatusCode: 401, Data: map[string]any{"message": "bad password"}}
		assert.Equal(t, "Login failed: bad password", FormatError("Login failed", err))
	})

	t.Run("existing prefix is not repeated", func(t *testing.T) {
		assert.Equal(t, "Login failed: bad password", FormatError("Login failed", errors.New("Login failed: bad password")))
	})

	t.Run("prefix match ignores case", func(t *testing.T) {
		assert.Equal(t, "login FAILED already", FormatError("Login failed", errors.New("login FAILED already")))
	})

	t.Run("empty detail gives the prefix", func(t *testing.T) {
		assert.Equal(t, "Login failed", FormatError("Login failed", nil))
		assert.Equal(t, "Login failed", FormatError("Login failed", &APIError{StatusCode: 500, Data: ""}))
	})
}

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &APIError{StatusCode: http.StatusUnauthorized})
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.False(t, IsStatus(err, http.StatusForbidden))
	assert.False(t, IsStatus(errors.New("x"), http.StatusUnauthorized))
}
