package repository

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/bunx"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

// setupTestDB opens an in-memory SQLite database with the trust-core
// schema.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 1)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []any{
		(*models.Tenant)(nil),
		(*models.User)(nil),
		(*models.Partner)(nil),
		(*models.AuditEvent)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("create table for %T: %v", model, err)
		}
	}
	return db
}

func seedTenant(t *testing.T, db *bun.DB, tenant *models.Tenant) *models.Tenant {
	t.Helper()
	if _, err := db.NewInsert().Model(tenant).Exec(context.Background()); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}
