// ABOUTME: Standardized JSON error responses for the admin HTTP handlers.
// ABOUTME: Maps plugin core errors onto status codes and machine-readable codes.

package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/2389/plughub/plugins/core"
)

// ErrorResponse is the error envelope returned by every admin endpoint.
//
// Usage:
//
//	WriteError(w, http.StatusNotFound, ErrPluginNotFound, "no plugin named FooPlugin")
type ErrorResponse struct {
	Code    string `json:"code"`              // Machine-readable error code (e.g., "plugin_not_found")
	Message string `json:"message"`           // Human-readable error message
	Status  int    `json:"status"`            // HTTP status code
	Field   string `json:"field,omitempty"`   // Request field that caused the error
	Details string `json:"details,omitempty"` // Underlying error text
}

// WriteError writes an error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

// WriteErrorWithField writes an error envelope that names the offending
// request field, e.g. a query parameter that failed to parse.
func WriteErrorWithField(w http.ResponseWriter, status int, code, message, field string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Field:   field,
	})
}

// WriteErrorWithDetails writes an error envelope carrying extra context.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	})
}

// WritePluginError translates an error returned by the plugin core.
// Unrecognized errors become a 500 with the error text as details.
func WritePluginError(w http.ResponseWriter, message string, err error) {
	status, code := classify(err)
	WriteErrorWithDetails(w, status, code, message, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case stderrors.Is(err, core.ErrPluginNotFound):
		return http.StatusNotFound, ErrPluginNotFound
	case stderrors.Is(err, core.ErrUnknownPlugin):
		return http.StatusUnprocessableEntity, ErrUnknownPlugin
	case stderrors.Is(err, core.ErrAttributeNotFound), stderrors.Is(err, core.ErrInvalidAttribute):
		return http.StatusUnprocessableEntity, ErrInvalidAttribute
	case stderrors.Is(err, core.ErrNoLocation):
		return http.StatusConflict, ErrConflict
	default:
		return http.StatusInternalServerError, ErrStateChange
	}
}

func writeErrorResponse(w http.ResponseWriter, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	json.NewEncoder(w).Encode(resp)
}

// Error codes used by the admin API.
const (
	// Client errors (4xx)
	ErrInvalidRequest   = "invalid_request"
	ErrInvalidBody      = "invalid_request_body"
	ErrNotFound         = "not_found"
	ErrPluginNotFound   = "plugin_not_found"
	ErrUnknownPlugin    = "unknown_plugin"
	ErrInvalidAttribute = "invalid_attribute"
	ErrConflict         = "conflict"

	// Server errors (5xx)
	ErrInternal           = "internal_error"
	ErrDatabaseError      = "database_error"
	ErrStateChange        = "state_change_failed"
	ErrServiceUnavailable = "service_unavailable"
)
