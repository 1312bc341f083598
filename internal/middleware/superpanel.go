package middleware

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/auth"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/access"
)

// SuperPanel attaches a fresh per-request access resolver and denies
// callers whose decision is not granted. Handlers behind it read the
// resolver from the context for scope clauses and per-tenant checks.
func SuperPanel(svc *access.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := auth.GetIdentityFromContext(r.Context())

			resolver := access.NewResolver(svc, identity.UserID)
			dec := resolver.GetAccess(r.Context())
			if !dec.Granted {
				apierr.Write(w, apierr.SuperPanelAccessDenied, dec.Reason)
				return
			}

			ctx := access.WithResolver(r.Context(), resolver)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
