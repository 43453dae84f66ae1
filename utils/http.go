package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxBodyBytes caps request bodies read by DecodeJSON.
const maxBodyBytes = 1 << 20

// Envelope is the shape of every API response
type Envelope struct {
	Success bool                `json:"success"`
	Status  int                 `json:"status"`
	Data    interface{}         `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Page wraps one page of a list endpoint
type Page struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success envelope
func WriteSuccess(w http.ResponseWriter, status int, data interface{}, message string) error {
	return WriteJSON(w, status, Envelope{
		Success: true,
		Status:  status,
		Data:    data,
		Message: message,
	})
}

// WriteOK writes a 200 OK envelope with data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteSuccess(w, http.StatusOK, data, "")
}

// WriteCreated writes a 201 Created envelope with data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteSuccess(w, http.StatusCreated, data, "")
}

// WritePage writes a 200 OK envelope wrapping items as {data, total}
func WritePage(w http.ResponseWriter, items interface{}, total int) error {
	return WriteOK(w, Page{Data: items, Total: total})
}

// WriteMessage writes a 200 OK envelope with a message only
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteSuccess(w, http.StatusOK, nil, message)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes a failure envelope
func WriteError(w http.ResponseWriter, status int, message string, fields map[string][]string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return WriteJSON(w, status, Envelope{
		Success: false,
		Status:  status,
		Message: message,
		Errors:  fields,
	})
}

// WriteBadRequest writes a 400 Bad Request envelope
func WriteBadRequest(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusBadRequest, message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized envelope
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Authentication required"
	}
	return WriteError(w, http.StatusUnauthorized, message, nil)
}

// WriteForbidden writes a 403 Forbidden envelope
func WriteForbidden(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Access forbidden"
	}
	return WriteError(w, http.StatusForbidden, message, nil)
}

// WriteNotFound writes a 404 Not Found envelope
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteError(w, http.StatusNotFound, message, nil)
}

// WriteConflict writes a 409 Conflict envelope
func WriteConflict(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusConflict, message, nil)
}

// WriteTooManyRequests writes a 429 envelope. A positive retryAfter (in
// seconds) is also sent as the Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, message string, retryAfter int) error {
	if message == "" {
		message = "Too many requests"
	}
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	return WriteError(w, http.StatusTooManyRequests, message, nil)
}

// WriteValidationError writes a 422 envelope with per-field messages
func WriteValidationError(w http.ResponseWriter, message string, fields map[string][]string) error {
	if message == "" {
		message = "The given data was invalid."
	}
	return WriteError(w, http.StatusUnprocessableEntity, message, fields)
}

// WriteInternalServerError writes a 500 Internal Server Error envelope
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteError(w, http.StatusInternalServerError, message, nil)
}

// DecodeJSON decodes a JSON request body into dst. An empty body leaves dst
// untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// QueryInt reads an integer query parameter, returning def when it is
// missing or malformed
func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
