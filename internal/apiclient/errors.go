package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is returned for responses with a non-2xx status. Data holds the
// decoded JSON body, or the body text when it was not JSON.
type APIError struct {
	StatusCode int
	Data       any
	Header     http.Header
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// ErrorMessage extracts a human-readable message from err. Server-provided
// details win over the Go error text; "" is returned for a nil error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Data != nil {
		if msg, ok := messageFromData(apiErr.Data); ok {
			return msg
		}
	}

	return err.Error()
}

func messageFromData(data any) (string, bool) {
	if s, ok := data.(string); ok {
		return s, true
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return "", false
	}

	if s, ok := obj["message"].(string); ok && strings.TrimSpace(s) != "" {
		return s, true
	}
	if s, ok := obj["error"].(string); ok && strings.TrimSpace(s) != "" {
		return s, true
	}

	switch errs := obj["errors"].(type) {
	case []any:
		return joinValues(errs, ", "), true
	case map[string]any:
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, field := range keys {
			var value string
			if list, ok := errs[field].([]any); ok {
				value = joinValues(list, ", ")
			} else {
				value = stringify(errs[field])
			}
			parts = append(parts, field+": "+value)
		}
		return strings.Join(parts, "; "), true
	}

	return "", false
}

// FormatError prefixes the detail of err with prefix, without repeating a
// prefix the detail already carries.
func FormatError(prefix string, err error) string {
	detail := ErrorMessage(err)
	if detail == "" {
		return prefix
	}
	if strings.HasPrefix(strings.ToLower(detail), strings.ToLower(prefix)) {
		return detail
	}
	return prefix + ": " + detail
}

func joinValues(values []any, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = stringify(v)
	}
	return strings.Join(parts, sep)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case bool:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(f)
}
