package access

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/auth"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
)

// Denial reasons surfaced in Decision.Reason and audit lines.
const (
	reasonGranted       = "Access granted"
	reasonNotAuth       = "Not authenticated"
	reasonUserNotFound  = "User not found"
	reasonNotAdmin      = "User does not have admin standing"
	reasonTenantMissing = "Tenant not found"
	reasonNoHub         = "Tenant does not have sub-tenant capability"
)

// Service computes access decisions from the authoritative user and tenant
// records. Tenant rows are read-mostly and cached through an LRU; the
// hierarchy service invalidates entries when it rewrites the tree.
type Service struct {
	users    repository.UserRepository
	tenants  repository.TenantRepository
	sink     audit.Sink
	maxDepth int

	tenantCache *lru.Cache[int64, *models.Tenant]
}

// NewService creates the access service. maxDepth is the platform ceiling
// on hierarchy depth; cacheSize bounds the tenant LRU.
func NewService(users repository.UserRepository, tenants repository.TenantRepository, sink audit.Sink, maxDepth, cacheSize int) (*Service, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[int64, *models.Tenant](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create tenant cache: %w", err)
	}
	return &Service{
		users:       users,
		tenants:     tenants,
		sink:        sink,
		maxDepth:    maxDepth,
		tenantCache: cache,
	}, nil
}

// MaxDepth returns the platform depth ceiling.
func (s *Service) MaxDepth() int {
	return s.maxDepth
}

// Evaluate computes the access decision for a user. Denials come back as
// fully formed decisions, never errors; a store failure is the one case
// that surfaces as an error.
func (s *Service) Evaluate(ctx context.Context, userID int64) (Decision, error) {
	if userID <= 0 {
		return s.deny(denied(0, reasonNotAuth)), nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.deny(denied(userID, reasonUserNotFound)), nil
		}
		return denied(userID, reasonUserNotFound), fmt.Errorf("evaluate access: %w", err)
	}

	standing := auth.StandingOf(auth.Identity{
		UserID:             user.ID,
		TenantID:           user.TenantID,
		Role:               user.Role,
		IsSuperAdmin:       user.IsSuperAdmin,
		IsTenantSuperAdmin: user.IsTenantSuperAdmin,
	})
	if !standing.CrossTenant() {
		return s.deny(denied(userID, reasonNotAdmin)), nil
	}

	tenant, err := s.TenantByID(ctx, user.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.deny(denied(userID, reasonTenantMissing)), nil
		}
		return denied(userID, reasonTenantMissing), fmt.Errorf("evaluate access: %w", err)
	}

	if tenant.IsMaster() {
		return Decision{
			Granted:          true,
			Level:            LevelMaster,
			UserID:           user.ID,
			TenantID:         tenant.ID,
			TenantName:       tenant.Name,
			TenantPath:       tenant.Path,
			TenantDepth:      tenant.Depth,
			Scope:            ScopeGlobal,
			CanCreateTenants: true,
			MaxDepth:         s.maxDepth,
			Reason:           reasonGranted,
		}, nil
	}

	if !tenant.AllowsSubtenants {
		// Admin standing is necessary but not sufficient: the home tenant
		// must also be a hierarchy hub.
		return s.deny(denied(userID, reasonNoHub)), nil
	}

	remaining := s.maxDepth - tenant.Depth
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Granted:          true,
		Level:            LevelRegional,
		UserID:           user.ID,
		TenantID:         tenant.ID,
		TenantName:       tenant.Name,
		TenantPath:       tenant.Path,
		TenantDepth:      tenant.Depth,
		Scope:            ScopeSubtree,
		CanCreateTenants: true,
		MaxDepth:         remaining,
		Reason:           reasonGranted,
	}, nil
}

// CanAccessTenant reports whether the decision covers the target tenant.
// Master reaches everything; regional reaches the home tenant and its
// descendants by path prefix.
func (s *Service) CanAccessTenant(ctx context.Context, dec Decision, targetID int64) bool {
	if !dec.Granted {
		return false
	}
	if dec.Level == LevelMaster {
		return true
	}
	if targetID == dec.TenantID {
		return true
	}
	target, err := s.TenantByID(ctx, targetID)
	if err != nil {
		return false
	}
	return strings.HasPrefix(target.Path, dec.TenantPath)
}

// CanCreateSubtenantUnder reports whether the decision permits creating a
// child under the given parent, with a reason on refusal.
func (s *Service) CanCreateSubtenantUnder(ctx context.Context, dec Decision, parent *models.Tenant) (bool, string) {
	if !dec.Granted || !dec.CanCreateTenants {
		return false, dec.Reason
	}
	if !s.CanAccessTenant(ctx, dec, parent.ID) {
		return false, "Parent tenant is outside your scope"
	}
	if !parent.AllowsSubtenants {
		return false, reasonNoHub
	}
	ceiling := parent.MaxDepth
	if ceiling <= 0 {
		ceiling = s.maxDepth
	}
	if parent.Depth+1 > ceiling {
		return false, "Hierarchy depth limit reached"
	}
	return true, reasonGranted
}

// CanManageTenant reports whether the decision permits mutating the target
// tenant. Same reach as CanAccessTenant but the master tenant itself may
// only be managed at master level.
func (s *Service) CanManageTenant(ctx context.Context, dec Decision, targetID int64) bool {
	if targetID == models.MasterTenantID && dec.Level != LevelMaster {
		return false
	}
	return s.CanAccessTenant(ctx, dec, targetID)
}

// TenantByID loads a tenant through the LRU cache.
func (s *Service) TenantByID(ctx context.Context, id int64) (*models.Tenant, error) {
	if tenant, ok := s.tenantCache.Get(id); ok {
		return tenant, nil
	}
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.tenantCache.Add(id, tenant)
	return tenant, nil
}

// InvalidateTenant evicts one tenant from the cache.
func (s *Service) InvalidateTenant(id int64) {
	s.tenantCache.Remove(id)
}

// PurgeTenantCache drops every cached tenant. Used after subtree rewrites
// where individual eviction would miss descendants.
func (s *Service) PurgeTenantCache() {
	s.tenantCache.Purge()
}

func (s *Service) deny(dec Decision) Decision {
	log.Printf("ACCESS DENIED: user=%d reason=%q", dec.UserID, dec.Reason)
	s.sink.Record(models.AuditEvent{
		Kind:    models.AuditKindAccessDenied,
		ActorID: dec.UserID,
		Detail:  dec.Reason,
	})
	return dec
}
