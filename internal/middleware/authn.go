// Package middleware contains the HTTP guards for the trust core: bearer
// identity extraction, the tenant spoofing guard, super-panel gating, and
// federation authentication.
package middleware

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/auth"
)

// BearerIdentity extracts and verifies the bearer token, storing the
// resulting identity on the request context. A missing or invalid token
// leaves the request unauthenticated; the downstream guards decide whether
// that is acceptable for the route.
func BearerIdentity(signingKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := auth.ParseIdentityToken(signingKey, token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.SetIdentityContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
