package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

// BunTenantRepository implements TenantRepository using Bun ORM
type BunTenantRepository struct {
	db *bun.DB
}

// NewBunTenantRepository creates a new Bun-based tenant repository
func NewBunTenantRepository(db *bun.DB) *BunTenantRepository {
	return &BunTenantRepository{db: db}
}

// Create inserts a new tenant into the database
func (r *BunTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	_, err := r.db.NewInsert().
		Model(tenant).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by its ID
func (r *BunTenantRepository) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	tenant := new(models.Tenant)
	err := r.db.NewSelect().
		Model(tenant).
		Where("t.id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("tenant %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by ID: %w", err)
	}
	return tenant, nil
}

// GetBySlug retrieves a tenant by its slug
func (r *BunTenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	tenant := new(models.Tenant)
	err := r.db.NewSelect().
		Model(tenant).
		Where("t.slug = ?", slug).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("tenant %q: %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by slug: %w", err)
	}
	return tenant, nil
}

// Update persists changes to an existing tenant
func (r *BunTenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	res, err := r.db.NewUpdate().
		Model(tenant).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("tenant %d: %w", tenant.ID, ErrNotFound)
	}
	return nil
}

// Delete soft-deletes a tenant
func (r *BunTenantRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Tenant)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("tenant %d: %w", id, ErrNotFound)
	}
	return nil
}

// List returns every live tenant ordered by path
func (r *BunTenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.NewSelect().
		Model(&tenants).
		Order("path ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// ListWhere returns live tenants matching a raw predicate over alias "t",
// ordered by path. The predicate comes from the access scope clause.
func (r *BunTenantRepository) ListWhere(ctx context.Context, cond string, args ...any) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.NewSelect().
		Model(&tenants).
		Where(cond, args...).
		Order("path ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants by scope: %w", err)
	}
	return tenants, nil
}

// ListSubtree returns the tenant whose path equals the prefix plus all of
// its descendants, ordered by path
func (r *BunTenantRepository) ListSubtree(ctx context.Context, pathPrefix string) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.NewSelect().
		Model(&tenants).
		Where("t.path LIKE ?", pathPrefix+"%").
		Order("path ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenant subtree: %w", err)
	}
	return tenants, nil
}

// ListChildren returns the direct children of a tenant
func (r *BunTenantRepository) ListChildren(ctx context.Context, parentID int64) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.NewSelect().
		Model(&tenants).
		Where("t.parent_id = ?", parentID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenant children: %w", err)
	}
	return tenants, nil
}

// CountChildren counts the direct children of a tenant
func (r *BunTenantRepository) CountChildren(ctx context.Context, parentID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.Tenant)(nil)).
		Where("t.parent_id = ?", parentID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tenant children: %w", err)
	}
	return count, nil
}

// UpdateSubtreePaths rewrites descendant paths after a move. The affected
// rows are everything strictly below the old prefix; the moved tenant's own
// row is excluded because Update already wrote it.
func (r *BunTenantRepository) UpdateSubtreePaths(ctx context.Context, oldPrefix, newPrefix string, depthDelta int) error {
	_, err := r.db.NewUpdate().
		Model((*models.Tenant)(nil)).
		Set("path = ? || substr(path, ?)", newPrefix, len(oldPrefix)+1).
		Set("depth = depth + ?", depthDelta).
		Where("path LIKE ? AND path <> ?", oldPrefix+"%", oldPrefix).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update subtree paths: %w", err)
	}
	return nil
}
