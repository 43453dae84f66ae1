package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/esign-platform/services"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	if utils.IsValidationError(err) {
		HandleValidationError(w, err, logger)
		return
	}

	message := publicMessage(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteValidationError(w, message, validationFields(err, message))

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, message)

	case services.IsRateLimitedError(err):
		retryAfter, _ := services.GetErrorDetails(err)["retry_after"].(int)
		writeErr = utils.WriteTooManyRequests(w, message, retryAfter)

	case services.IsExternalError(err):
		// Upstream failures (Google, SMTP) are mapped to 502 Bad Gateway
		logger.Warn("external service error", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusBadGateway, message, nil)

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var writeErr error
	if utils.IsValidationError(err) {
		var verr *utils.ValidationError
		errors.As(err, &verr)
		writeErr = utils.WriteValidationError(w, verr.Message, verr.Fields)
	} else {
		writeErr = utils.WriteValidationError(w, err.Error(), nil)
	}
	if writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}

// publicMessage is the message of the outermost domain error, without its
// type prefix or cause.
func publicMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// validationFields builds the field map for a domain validation error. A
// "field" detail names the offending field.
func validationFields(err error, message string) map[string][]string {
	details := services.GetErrorDetails(err)
	field, _ := details["field"].(string)
	if field == "" {
		return nil
	}
	return map[string][]string{field: {message}}
}
