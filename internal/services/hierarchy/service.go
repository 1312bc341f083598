// Package hierarchy manages the tenant tree: creating, updating, moving
// and retiring tenants, and granting subtree administration. Every
// operation is gated by the caller's access decision and maintains the
// materialized path invariant.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/access"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
)

// Error is an operation refusal with a taxonomy code for the HTTP layer.
type Error struct {
	Code    apierr.Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func denied(message string) *Error {
	return &Error{Code: apierr.SuperPanelAccessDenied, Message: message}
}

func invalid(message string) *Error {
	return &Error{Code: apierr.ValidationError, Message: message}
}

// Service mutates the tenant hierarchy.
type Service struct {
	tenants repository.TenantRepository
	users   repository.UserRepository
	access  *access.Service
	sink    audit.Sink
}

// NewService creates the hierarchy service.
func NewService(tenants repository.TenantRepository, users repository.UserRepository, accessSvc *access.Service, sink audit.Sink) *Service {
	return &Service{tenants: tenants, users: users, access: accessSvc, sink: sink}
}

// CreateTenantInput is the payload for CreateTenant.
type CreateTenantInput struct {
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	Domain           string `json:"domain"`
	AllowsSubtenants bool   `json:"allows_subtenants"`
	MaxDepth         int    `json:"max_depth"`
	IsActive         *bool  `json:"is_active"`
}

// CreateTenant creates a child under the given parent. The path is written
// in the same transaction shape as the original flow: insert, then stamp
// path as parent path + new id + "/".
func (s *Service) CreateTenant(ctx context.Context, dec access.Decision, parentID int64, in CreateTenantInput) (*models.Tenant, error) {
	parent, err := s.tenants.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("Parent tenant not found")
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	if ok, reason := s.access.CanCreateSubtenantUnder(ctx, dec, parent); !ok {
		return nil, denied(reason)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("Tenant name is required")
	}

	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug, err = s.generateSlug(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("create tenant: %w", err)
		}
	} else if _, err := s.tenants.GetBySlug(ctx, slug); err == nil {
		return nil, invalid("Slug already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	maxDepth := 0
	if in.AllowsSubtenants {
		maxDepth = in.MaxDepth
		if maxDepth < 0 {
			maxDepth = 0
		}
		if maxDepth == 0 {
			maxDepth = 2
		}
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	tenant := &models.Tenant{
		Name:             name,
		Slug:             slug,
		Domain:           strings.TrimSpace(in.Domain),
		ParentID:         &parent.ID,
		Depth:            parent.Depth + 1,
		AllowsSubtenants: in.AllowsSubtenants,
		MaxDepth:         maxDepth,
		IsActive:         active,
	}
	// Placeholder until the generated id is known.
	tenant.Path = parent.Path

	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	tenant.Path = parent.ChildPath(tenant.ID)
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("create tenant: stamp path: %w", err)
	}

	s.recordChange(dec, tenant.ID, fmt.Sprintf("Created tenant %q under parent %d", name, parent.ID))
	return tenant, nil
}

// UpdateTenantInput carries the mutable tenant fields; nil means unchanged.
type UpdateTenantInput struct {
	Name     *string `json:"name"`
	Domain   *string `json:"domain"`
	IsActive *bool   `json:"is_active"`
}

// UpdateTenant applies the changed fields to a tenant in the caller's
// scope.
func (s *Service) UpdateTenant(ctx context.Context, dec access.Decision, tenantID int64, in UpdateTenantInput) (*models.Tenant, error) {
	if !s.access.CanManageTenant(ctx, dec, tenantID) {
		return nil, denied("You cannot manage this tenant")
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("Tenant not found")
		}
		return nil, fmt.Errorf("update tenant: %w", err)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("Tenant name is required")
		}
		tenant.Name = name
	}
	if in.Domain != nil {
		tenant.Domain = strings.TrimSpace(*in.Domain)
	}
	if in.IsActive != nil {
		tenant.IsActive = *in.IsActive
	}
	tenant.UpdatedAt = time.Now().UTC()

	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}

	s.access.InvalidateTenant(tenantID)
	s.recordChange(dec, tenantID, fmt.Sprintf("Updated tenant %q", tenant.Name))
	return tenant, nil
}

// DeleteTenant deactivates a leaf tenant. The master tenant and tenants
// with children are refused.
func (s *Service) DeleteTenant(ctx context.Context, dec access.Decision, tenantID int64) error {
	if !s.access.CanManageTenant(ctx, dec, tenantID) {
		return denied("You cannot manage this tenant")
	}
	if tenantID == models.MasterTenantID {
		return invalid("Cannot delete Master tenant")
	}

	children, err := s.tenants.CountChildren(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if children > 0 {
		return invalid(fmt.Sprintf("Cannot delete tenant with %d sub-tenant(s). Delete children first.", children))
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("Tenant not found")
		}
		return fmt.Errorf("delete tenant: %w", err)
	}

	tenant.IsActive = false
	tenant.UpdatedAt = time.Now().UTC()
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}

	s.access.InvalidateTenant(tenantID)
	s.recordChange(dec, tenantID, fmt.Sprintf("Deactivated tenant %q", tenant.Name))
	return nil
}

// MoveTenant reparents a tenant, rewriting its path and depth and those of
// every descendant. Moving a tenant under itself or one of its descendants
// is refused: that would detach the subtree into a cycle.
func (s *Service) MoveTenant(ctx context.Context, dec access.Decision, tenantID, newParentID int64) error {
	if !s.access.CanManageTenant(ctx, dec, tenantID) {
		return denied("You cannot manage this tenant")
	}
	if tenantID == models.MasterTenantID {
		return invalid("Cannot move Master tenant")
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("Tenant not found")
		}
		return fmt.Errorf("move tenant: %w", err)
	}
	newParent, err := s.tenants.GetByID(ctx, newParentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("Tenant not found")
		}
		return fmt.Errorf("move tenant: %w", err)
	}

	if ok, reason := s.access.CanCreateSubtenantUnder(ctx, dec, newParent); !ok {
		return denied(reason)
	}
	if newParent.ID == tenant.ID || newParent.IsDescendantOf(tenant) {
		return invalid("Cannot move tenant under its own descendant")
	}

	oldPath := tenant.Path
	newPath := newParent.ChildPath(tenant.ID)
	depthDelta := newParent.Depth + 1 - tenant.Depth

	tenant.ParentID = &newParent.ID
	tenant.Path = newPath
	tenant.Depth = newParent.Depth + 1
	tenant.UpdatedAt = time.Now().UTC()

	if err := s.tenants.Update(ctx, tenant); err != nil {
		return fmt.Errorf("move tenant: %w", err)
	}
	if err := s.tenants.UpdateSubtreePaths(ctx, oldPath, newPath, depthDelta); err != nil {
		return fmt.Errorf("move tenant: %w", err)
	}

	// Descendant paths changed wholesale; individual eviction would miss
	// them.
	s.access.PurgeTenantCache()
	s.recordChange(dec, tenantID, fmt.Sprintf("Moved tenant %q from %s to %s", tenant.Name, oldPath, newPath))
	return nil
}

// ToggleSubtenantCapability flips a tenant's hub flag. Enabling grants a
// default creatable depth of 2; disabling zeroes it.
func (s *Service) ToggleSubtenantCapability(ctx context.Context, dec access.Decision, tenantID int64, enable bool) error {
	if !s.access.CanManageTenant(ctx, dec, tenantID) {
		return denied("You cannot manage this tenant")
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("Tenant not found")
		}
		return fmt.Errorf("toggle hub: %w", err)
	}

	tenant.AllowsSubtenants = enable
	if enable {
		tenant.MaxDepth = 2
	} else {
		tenant.MaxDepth = 0
	}
	tenant.UpdatedAt = time.Now().UTC()

	if err := s.tenants.Update(ctx, tenant); err != nil {
		return fmt.Errorf("toggle hub: %w", err)
	}

	s.access.InvalidateTenant(tenantID)
	verb := "Disabled"
	if enable {
		verb = "Enabled"
	}
	s.recordChange(dec, tenantID, fmt.Sprintf("%s hub capability for %q", verb, tenant.Name))
	return nil
}

// AssignTenantSuperAdmin grants subtree administration to a user of the
// given tenant.
func (s *Service) AssignTenantSuperAdmin(ctx context.Context, dec access.Decision, userID, tenantID int64) error {
	if !s.access.CanManageTenant(ctx, dec, tenantID) {
		return denied("You cannot manage this tenant")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("User not found")
		}
		return fmt.Errorf("assign tenant super admin: %w", err)
	}
	if user.TenantID != tenantID {
		return invalid("User does not belong to this tenant")
	}

	if err := s.users.SetTenantSuperAdmin(ctx, userID, true); err != nil {
		return fmt.Errorf("assign tenant super admin: %w", err)
	}

	s.recordChange(dec, tenantID, fmt.Sprintf("Granted super admin to user %d", userID))
	return nil
}

// RevokeTenantSuperAdmin removes subtree administration from a user.
func (s *Service) RevokeTenantSuperAdmin(ctx context.Context, dec access.Decision, userID int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("User not found")
		}
		return fmt.Errorf("revoke tenant super admin: %w", err)
	}
	if !s.access.CanManageTenant(ctx, dec, user.TenantID) {
		return denied("You cannot manage this tenant")
	}

	if err := s.users.SetTenantSuperAdmin(ctx, userID, false); err != nil {
		return fmt.Errorf("revoke tenant super admin: %w", err)
	}

	s.recordChange(dec, user.TenantID, fmt.Sprintf("Revoked super admin from user %d", userID))
	return nil
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// generateSlug derives a URL-safe slug from the name, suffixing a counter
// until it is unique.
func (s *Service) generateSlug(ctx context.Context, name string) (string, error) {
	base := strings.Trim(slugCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-"), "-")
	if base == "" {
		base = "tenant"
	}

	slug := base
	for counter := 1; ; counter++ {
		_, err := s.tenants.GetBySlug(ctx, slug)
		if errors.Is(err, repository.ErrNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (s *Service) recordChange(dec access.Decision, tenantID int64, detail string) {
	s.sink.Record(models.AuditEvent{
		Kind:     models.AuditKindTenantChange,
		ActorID:  dec.UserID,
		TenantID: tenantID,
		Detail:   detail,
	})
}
