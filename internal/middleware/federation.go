package middleware

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/federation"
)

// maxFederationBodyBytes bounds how much payload is buffered for HMAC
// verification.
const maxFederationBodyBytes = 10 << 20

// FederationAuth authenticates inbound partner traffic through the
// gateway. The body is buffered so the signature can cover the exact bytes
// and the handler can still read them. Rate-limit headers are set on every
// response where a partner was identified.
func FederationAuth(gateway *federation.Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxFederationBodyBytes))
			if err != nil {
				apierr.Write(w, apierr.ValidationError, "Unreadable request body")
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			req := &federation.AuthRequest{
				Method:  r.Method,
				Path:    r.URL.RequestURI(),
				Headers: r.Header,
				Body:    body,
			}

			auth, rate, err := gateway.Authenticate(r.Context(), req)
			if rate != nil {
				setRateHeaders(w, rate)
			}
			if err != nil {
				var authErr *federation.AuthError
				if errors.As(err, &authErr) {
					if authErr.Code == apierr.RateLimitExceeded && rate != nil {
						w.Header().Set("Retry-After", strconv.FormatInt(rate.RetryAfter(time.Now()), 10))
					}
					writeAuthError(w, r, authErr)
					return
				}
				apierr.Write(w, apierr.Internal, "Authentication unavailable")
				return
			}

			ctx := federation.WithPartnerAuth(r.Context(), auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a federation route on a partner capability.
func RequirePermission(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, _ := federation.PartnerAuthFromContext(r.Context())
			if !federation.HasPermission(auth, capability) {
				apierr.Write(w, apierr.PermissionDenied, "Permission denied for: "+capability)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError strips failure detail before it reaches the client. The
// gateway's precise code goes to the server log; the response never tells a
// caller probing credentials whether the key, the signature, or the
// timestamp was wrong. Missing credentials, inactive partners, and rate
// limiting stay distinct: none of those reveals anything about a presented
// secret.
func writeAuthError(w http.ResponseWriter, r *http.Request, authErr *federation.AuthError) {
	switch authErr.Code {
	case apierr.MissingAPIKey, apierr.PartnerInactive, apierr.RateLimitExceeded:
		apierr.Write(w, authErr.Code, authErr.Message)
	default:
		log.Printf("federation: rejected %s %s: %v", r.Method, r.URL.Path, authErr)
		apierr.Write(w, apierr.InvalidAPIKey, "Invalid federation credentials")
	}
}

func setRateHeaders(w http.ResponseWriter, rate *federation.RateInfo) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rate.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rate.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rate.Reset, 10))
}
