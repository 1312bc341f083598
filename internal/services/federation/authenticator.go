// Package federation authenticates external partner platforms calling the
// federation API. Three schemes are supported, tried strongest first: an
// HMAC-signed request, a bearer JWT, and a static API key.
package federation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

// Auth method names, recorded on the authenticated context and audit log.
const (
	MethodHMAC   = "hmac"
	MethodJWT    = "jwt"
	MethodAPIKey = "api_key"
)

// Federation request headers.
const (
	HeaderSignature  = "X-Federation-Signature"
	HeaderTimestamp  = "X-Federation-Timestamp"
	HeaderPlatformID = "X-Federation-Platform-Id"
	HeaderTenantID   = "X-Federation-Tenant-Id"
	HeaderAPIKey     = "X-API-Key"
)

// AuthRequest carries the request material authenticators inspect. Body is
// the raw payload as received; HMAC verification signs the exact bytes.
type AuthRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// PartnerAuth is the authenticated partner plus the method that proved it.
type PartnerAuth struct {
	Partner *models.Partner
	Method  string
}

// TenantID returns the partner's tenant.
func (a *PartnerAuth) TenantID() int64 {
	if a == nil || a.Partner == nil {
		return 0
	}
	return a.Partner.TenantID
}

// Authenticator validates one credential scheme.
//
// Return values:
//   - (auth, nil): authentication successful
//   - (nil, nil): credentials for this scheme not present, try next
//   - (nil, error): authentication failed (an *AuthError carries the code)
type Authenticator interface {
	Authenticate(ctx context.Context, req *AuthRequest) (*PartnerAuth, error)
}

// AuthError is an authentication failure with a taxonomy code. The HTTP
// layer maps the code to a status; the message stays generic enough not to
// reveal which factor failed to an attacker probing credentials.
type AuthError struct {
	Code    apierr.Code
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func authErr(code apierr.Code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}
