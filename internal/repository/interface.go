package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// match it with errors.Is.
var ErrNotFound = errors.New("not found")

// TenantRepository exposes persistence operations for hierarchy nodes.
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id int64) error

	// Query operations
	List(ctx context.Context) ([]models.Tenant, error)
	// ListWhere filters by a raw predicate over alias "t", as produced by
	// the access scope clause.
	ListWhere(ctx context.Context, cond string, args ...any) ([]models.Tenant, error)
	ListSubtree(ctx context.Context, pathPrefix string) ([]models.Tenant, error)
	ListChildren(ctx context.Context, parentID int64) ([]models.Tenant, error)
	CountChildren(ctx context.Context, parentID int64) (int, error)

	// UpdateSubtreePaths rewrites path and depth for every descendant when
	// a tenant moves. The tenant's own row is updated by Update.
	UpdateSubtreePaths(ctx context.Context, oldPrefix, newPrefix string, depthDelta int) error
}

// UserRepository exposes persistence operations for platform members.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetTenantSuperAdmin(ctx context.Context, userID int64, granted bool) error
}

// PartnerRepository exposes persistence operations for federation partners.
type PartnerRepository interface {
	Create(ctx context.Context, partner *models.Partner) error
	GetByPlatformID(ctx context.Context, platformID string) (*models.Partner, error)
	GetByKeyHash(ctx context.Context, keyHash string) (*models.Partner, error)
	Update(ctx context.Context, partner *models.Partner) error
	List(ctx context.Context) ([]models.Partner, error)

	// TouchUsage bumps the lifetime request counter and last-used stamp.
	// Called fire-and-forget after a successful authentication.
	TouchUsage(ctx context.Context, id int64, at time.Time) error

	// ConsumeRateSlot increments the partner's counter for the given UTC
	// hour bucket, resetting it when the bucket has rolled over, and
	// returns the count after the increment.
	ConsumeRateSlot(ctx context.Context, id int64, hour string) (int, error)
}

// AuditRepository appends audit events.
type AuditRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}
