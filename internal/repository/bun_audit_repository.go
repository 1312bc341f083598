package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

// BunAuditRepository implements AuditRepository using Bun ORM
type BunAuditRepository struct {
	db *bun.DB
}

// NewBunAuditRepository creates a new Bun-based audit repository
func NewBunAuditRepository(db *bun.DB) *BunAuditRepository {
	return &BunAuditRepository{db: db}
}

// Insert appends an audit event
func (r *BunAuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	_, err := r.db.NewInsert().
		Model(event).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
