package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/access"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/hierarchy"
)

// SuperPanelHandler serves the hierarchy administration API. Every route is
// mounted behind the super-panel middleware, so a resolver with a granted
// decision is always on the context.
type SuperPanelHandler struct {
	Access    *access.Service
	Hierarchy *hierarchy.Service
	Tenants   repository.TenantRepository
}

// GetAccess returns the caller's access decision so the admin UI can shape
// itself around the granted scope.
func (h *SuperPanelHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	resolver, _ := access.ResolverFromContext(r.Context())
	apierr.WriteSuccess(w, http.StatusOK, resolver.GetAccess(r.Context()))
}

// ListTenants returns every tenant within the caller's scope. The scope
// clause is applied directly to the query, so a regional admin only ever
// receives their subtree.
func (h *SuperPanelHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	resolver, _ := access.ResolverFromContext(r.Context())
	clause := resolver.ScopeClause(r.Context(), "t")

	tenants, err := h.Tenants.ListWhere(r.Context(), clause.SQL, clause.Args...)
	if err != nil {
		apierr.Write(w, apierr.Internal, "Failed to list tenants")
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, tenants)
}

// GetTenant returns one tenant, if it is within the caller's scope.
func (h *SuperPanelHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	resolver, _ := access.ResolverFromContext(r.Context())
	if !resolver.CanAccessTenant(r.Context(), tenantID) {
		apierr.Write(w, apierr.SuperPanelAccessDenied, "Tenant is outside your scope")
		return
	}

	tenant, err := h.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierr.Write(w, apierr.NotFound, "Tenant not found")
			return
		}
		apierr.Write(w, apierr.Internal, "Failed to load tenant")
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, tenant)
}

// GetSubtree returns a tenant and all of its descendants. The admin UI uses
// this to render a branch without paging through the full scope.
func (h *SuperPanelHandler) GetSubtree(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	resolver, _ := access.ResolverFromContext(r.Context())
	if !resolver.CanAccessTenant(r.Context(), tenantID) {
		apierr.Write(w, apierr.SuperPanelAccessDenied, "Tenant is outside your scope")
		return
	}

	tenant, err := h.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierr.Write(w, apierr.NotFound, "Tenant not found")
			return
		}
		apierr.Write(w, apierr.Internal, "Failed to load tenant")
		return
	}

	subtree, err := h.Tenants.ListSubtree(r.Context(), tenant.Path)
	if err != nil {
		apierr.Write(w, apierr.Internal, "Failed to list subtree")
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, subtree)
}

// GetChildren returns a tenant's direct children, for lazy tree expansion.
func (h *SuperPanelHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	resolver, _ := access.ResolverFromContext(r.Context())
	if !resolver.CanAccessTenant(r.Context(), tenantID) {
		apierr.Write(w, apierr.SuperPanelAccessDenied, "Tenant is outside your scope")
		return
	}

	children, err := h.Tenants.ListChildren(r.Context(), tenantID)
	if err != nil {
		apierr.Write(w, apierr.Internal, "Failed to list children")
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, children)
}

// CreateTenant creates a sub-tenant under the parent named in the body.
func (h *SuperPanelHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParentID int64 `json:"parent_id"`
		hierarchy.CreateTenantInput
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resolver, _ := access.ResolverFromContext(r.Context())
	tenant, err := h.Hierarchy.CreateTenant(r.Context(), resolver.GetAccess(r.Context()), body.ParentID, body.CreateTenantInput)
	if err != nil {
		writeHierarchyError(w, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusCreated, tenant)
}

// UpdateTenant applies changed fields to a tenant.
func (h *SuperPanelHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var body hierarchy.UpdateTenantInput
	if !decodeBody(w, r, &body) {
		return
	}

	resolver, _ := access.ResolverFromContext(r.Context())
	tenant, err := h.Hierarchy.UpdateTenant(r.Context(), resolver.GetAccess(r.Context()), tenantID, body)
	if err != nil {
		writeHierarchyError(w, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, tenant)
}

// DeleteTenant deactivates a leaf tenant.
func (h *SuperPanelHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}

	resolver, _ := access.ResolverFromContext(r.Context())
	if err := h.Hierarchy.DeleteTenant(r.Context(), resolver.GetAccess(r.Context()), tenantID); err != nil {
		writeHierarchyError(w, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{"deleted": tenantID})
}

// MoveTenant reparents a tenant.
func (h *SuperPanelHandler) MoveTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var body struct {
		NewParentID int64 `json:"new_parent_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resolver, _ := access.ResolverFromContext(r.Context())
	if err := h.Hierarchy.MoveTenant(r.Context(), resolver.GetAccess(r.Context()), tenantID, body.NewParentID); err != nil {
		writeHierarchyError(w, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{"moved": tenantID, "new_parent_id": body.NewParentID})
}

// ToggleHub flips a tenant's sub-tenant capability.
func (h *SuperPanelHandler) ToggleHub(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var body struct {
		Enable bool `json:"enable"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resolver, _ := access.ResolverFromContext(r.Context())
	if err := h.Hierarchy.ToggleSubtenantCapability(r.Context(), resolver.GetAccess(r.Context()), tenantID, body.Enable); err != nil {
		writeHierarchyError(w, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{"tenant_id": tenantID, "allows_subtenants": body.Enable})
}

// AssignSuperAdmin grants tenant-subtree administration to a user.
func (h *SuperPanelHandler) AssignSuperAdmin(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var body struct {
		UserID int64 `json:"user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resolver, _ := access.ResolverFromContext(r.Context())
	if err := h.Hierarchy.AssignTenantSuperAdmin(r.Context(), resolver.GetAccess(r.Context()), body.UserID, tenantID); err != nil {
		writeHierarchyError(w, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{"user_id": body.UserID, "is_tenant_super_admin": true})
}

// RevokeSuperAdmin removes tenant-subtree administration from a user.
func (h *SuperPanelHandler) RevokeSuperAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	resolver, _ := access.ResolverFromContext(r.Context())
	if err := h.Hierarchy.RevokeTenantSuperAdmin(r.Context(), resolver.GetAccess(r.Context()), userID); err != nil {
		writeHierarchyError(w, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, map[string]any{"user_id": userID, "is_tenant_super_admin": false})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		apierr.Write(w, apierr.ValidationError, "Invalid "+param)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierr.Write(w, apierr.ValidationError, "Invalid request body")
		return false
	}
	return true
}

func writeHierarchyError(w http.ResponseWriter, err error) {
	var opErr *hierarchy.Error
	if errors.As(err, &opErr) {
		apierr.Write(w, opErr.Code, opErr.Message)
		return
	}
	apierr.Write(w, apierr.Internal, "Operation failed")
}
