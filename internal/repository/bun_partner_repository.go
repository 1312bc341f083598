package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

// BunPartnerRepository implements PartnerRepository using Bun ORM
type BunPartnerRepository struct {
	db *bun.DB
}

// NewBunPartnerRepository creates a new Bun-based partner repository
func NewBunPartnerRepository(db *bun.DB) *BunPartnerRepository {
	return &BunPartnerRepository{db: db}
}

// Create inserts a new partner into the database
func (r *BunPartnerRepository) Create(ctx context.Context, partner *models.Partner) error {
	_, err := r.db.NewInsert().
		Model(partner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create partner: %w", err)
	}
	return nil
}

// GetByPlatformID retrieves a partner by its platform identifier
func (r *BunPartnerRepository) GetByPlatformID(ctx context.Context, platformID string) (*models.Partner, error) {
	partner := new(models.Partner)
	err := r.db.NewSelect().
		Model(partner).
		Where("fp.platform_id = ?", platformID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("partner %q: %w", platformID, ErrNotFound)
		}
		return nil, fmt.Errorf("get partner by platform ID: %w", err)
	}
	return partner, nil
}

// GetByKeyHash retrieves a partner by the SHA-256 hash of its API key
func (r *BunPartnerRepository) GetByKeyHash(ctx context.Context, keyHash string) (*models.Partner, error) {
	partner := new(models.Partner)
	err := r.db.NewSelect().
		Model(partner).
		Where("fp.key_hash = ?", keyHash).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("partner key: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get partner by key hash: %w", err)
	}
	return partner, nil
}

// Update persists changes to an existing partner
func (r *BunPartnerRepository) Update(ctx context.Context, partner *models.Partner) error {
	res, err := r.db.NewUpdate().
		Model(partner).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update partner: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("partner %d: %w", partner.ID, ErrNotFound)
	}
	return nil
}

// List returns all partners ordered by name
func (r *BunPartnerRepository) List(ctx context.Context) ([]models.Partner, error) {
	var partners []models.Partner
	err := r.db.NewSelect().
		Model(&partners).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	return partners, nil
}

// TouchUsage bumps the lifetime request counter and last-used stamp
func (r *BunPartnerRepository) TouchUsage(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Partner)(nil)).
		Set("request_count = request_count + 1").
		Set("last_used_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch partner usage: %w", err)
	}
	return nil
}

// ConsumeRateSlot increments the hourly counter, resetting it when the hour
// bucket has rolled over, and returns the count after the increment. The
// whole operation is a single UPDATE so two concurrent requests can never
// read the same count and lose an increment.
func (r *BunPartnerRepository) ConsumeRateSlot(ctx context.Context, id int64, hour string) (int, error) {
	var count int
	_, err := r.db.NewUpdate().
		Model((*models.Partner)(nil)).
		Set("hourly_request_count = CASE WHEN rate_limit_hour = ? THEN hourly_request_count + 1 ELSE 1 END", hour).
		Set("rate_limit_hour = ?", hour).
		Where("id = ?", id).
		Returning("hourly_request_count").
		Exec(ctx, &count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("partner %d: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("consume rate slot: %w", err)
	}
	return count, nil
}
