package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/auth"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
)

// TenantGuard resolves the effective tenant for the request from the token
// claim versus the override header, in this exact order:
//
//  1. No header: effective tenant is the token's tenant.
//  2. Header equals the token's tenant: no-op override, allowed.
//  3. Header differs: allowed only for a verified cross-tenant super
//     admin; everyone else gets TENANT_MISMATCH before any tenant-scoped
//     data access.
//
// The override header exists so genuine cross-tenant tooling can target a
// specific tenant. Without step 3 any authenticated admin could set the
// header to another tenant's id and read that tenant's data. Every
// rejected override is written to the audit sink.
func TenantGuard(headerName string, sink audit.Sink) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := auth.GetIdentityFromContext(r.Context())

			raw := strings.TrimSpace(r.Header.Get(headerName))
			if raw == "" {
				ctx := auth.SetEffectiveTenant(r.Context(), identity.TenantID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			override, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || override <= 0 {
				apierr.Write(w, apierr.InvalidTenant, "Invalid tenant identifier")
				return
			}

			if override == identity.TenantID {
				ctx := auth.SetEffectiveTenant(r.Context(), override)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if !identity.IsSuperAdminStanding() {
				sink.Record(models.AuditEvent{
					Kind:     models.AuditKindSpoofAttempt,
					ActorID:  identity.UserID,
					TenantID: identity.TenantID,
					Method:   r.Method,
					Path:     r.URL.Path,
					Status:   http.StatusForbidden,
					Detail:   fmt.Sprintf("rejected override to tenant %d", override),
				})
				apierr.Write(w, apierr.TenantMismatch, "Tenant context does not match your account")
				return
			}

			ctx := auth.SetEffectiveTenant(r.Context(), override)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
