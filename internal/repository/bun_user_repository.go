package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// Create inserts a new user into the database
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.db.NewInsert().
		Model(user).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID
func (r *BunUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user by ID: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by their email
func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("u.email = ?", email).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// Update persists changes to an existing user
func (r *BunUserRepository) Update(ctx context.Context, user *models.User) error {
	res, err := r.db.NewUpdate().
		Model(user).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}
	return nil
}

// SetTenantSuperAdmin flips the tenant super admin flag on a user
func (r *BunUserRepository) SetTenantSuperAdmin(ctx context.Context, userID int64, granted bool) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_tenant_super_admin = ?", granted).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set tenant super admin: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}
