// Package apierr defines the named error codes exposed by the Nexus API and
// their HTTP status mapping. Every JSON error response carries one of these
// codes so clients (and regression tests) can match on the code rather than
// on message text.
package apierr

import (
	"encoding/json"
	"net/http"
	"time"
)

// Code identifies a named API error.
type Code string

const (
	// Tenant isolation
	TenantMismatch Code = "TENANT_MISMATCH"
	InvalidTenant  Code = "INVALID_TENANT"

	// Super panel
	SuperPanelAccessDenied Code = "SUPER_PANEL_ACCESS_DENIED"

	// Federation authentication
	MissingAPIKey        Code = "MISSING_API_KEY"
	InvalidAPIKey        Code = "INVALID_API_KEY"
	InvalidAuthHeader    Code = "INVALID_AUTH_HEADER"
	InvalidToken         Code = "INVALID_TOKEN"
	PlatformNotFound     Code = "PLATFORM_NOT_FOUND"
	PartnerInactive      Code = "PARTNER_INACTIVE"
	TimestampInvalid     Code = "TIMESTAMP_INVALID"
	SignatureInvalid     Code = "SIGNATURE_INVALID"
	HMACRequired         Code = "HMAC_REQUIRED"
	SigningNotConfigured Code = "SIGNING_NOT_CONFIGURED"
	PermissionDenied     Code = "PERMISSION_DENIED"
	RateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// General
	ValidationError Code = "VALIDATION_ERROR"
	NotFound        Code = "NOT_FOUND"
	Unauthorized    Code = "UNAUTHORIZED"
	Internal        Code = "INTERNAL_ERROR"
)

// httpStatus maps each code to its HTTP status. Codes absent from the map
// report 500 so a missing entry fails loudly rather than leaking a 200.
var httpStatus = map[Code]int{
	TenantMismatch:         http.StatusForbidden,
	InvalidTenant:          http.StatusBadRequest,
	SuperPanelAccessDenied: http.StatusForbidden,
	MissingAPIKey:          http.StatusUnauthorized,
	InvalidAPIKey:          http.StatusUnauthorized,
	InvalidAuthHeader:      http.StatusUnauthorized,
	InvalidToken:           http.StatusUnauthorized,
	PlatformNotFound:       http.StatusUnauthorized,
	PartnerInactive:        http.StatusForbidden,
	TimestampInvalid:       http.StatusUnauthorized,
	SignatureInvalid:       http.StatusUnauthorized,
	HMACRequired:           http.StatusUnauthorized,
	SigningNotConfigured:   http.StatusUnauthorized,
	PermissionDenied:       http.StatusForbidden,
	RateLimitExceeded:      http.StatusTooManyRequests,
	ValidationError:        http.StatusBadRequest,
	NotFound:               http.StatusNotFound,
	Unauthorized:           http.StatusUnauthorized,
	Internal:               http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for a code, defaulting to 500.
func HTTPStatus(code Code) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON envelope written for every API error.
type ErrorBody struct {
	Error     bool   `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Write emits the standard JSON error envelope with the code's HTTP status.
func Write(w http.ResponseWriter, code Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(code))
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Error:     true,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteSuccess emits a JSON success envelope wrapping the given payload.
func WriteSuccess(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      payload,
	})
}
