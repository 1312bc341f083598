package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260815000000, down_20260815000000)
}

// up_20260815000000 initializes the full trust-core schema and seeds the
// master tenant.
func up_20260815000000(ctx context.Context, db *bun.DB) error {
	// 1. Create tenants table
	fmt.Print(" [up] creating tenants table...")
	_, err := db.NewCreateTable().
		Model((*models.Tenant)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create tenants table: %w", err)
	}

	// Path prefix matching drives every subtree query. On PostgreSQL the
	// LIKE 'prefix%' scans only use a btree index under pattern ops; plain
	// SQLite indexes handle prefixes as is.
	pathIndex := `CREATE INDEX IF NOT EXISTS idx_tenants_path ON tenants(path)`
	if isPostgres(db) {
		pathIndex = `CREATE INDEX IF NOT EXISTS idx_tenants_path ON tenants(path text_pattern_ops)`
	}
	_, err = db.Exec(pathIndex)
	if err != nil {
		return fmt.Errorf("failed to create tenants path index: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_tenants_parent_id ON tenants(parent_id)`)
	if err != nil {
		return fmt.Errorf("failed to create tenants parent_id index: %w", err)
	}
	fmt.Println(" OK")

	// 2. Create users table
	fmt.Print(" [up] creating users table...")
	_, err = db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id)`)
	if err != nil {
		return fmt.Errorf("failed to create users tenant_id index: %w", err)
	}

	// Emails are unique case-insensitively; the two engines spell that
	// differently.
	emailIndex := `CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_ci ON users(lower(email))`
	if isSQLite(db) {
		emailIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_ci ON users(email COLLATE NOCASE)`
	}
	_, err = db.Exec(emailIndex)
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}
	fmt.Println(" OK")

	// 3. Create federation_partners table
	fmt.Print(" [up] creating federation_partners table...")
	_, err = db.NewCreateTable().
		Model((*models.Partner)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create federation_partners table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_federation_partners_platform_id ON federation_partners(platform_id)`)
	if err != nil {
		return fmt.Errorf("failed to create federation_partners platform_id index: %w", err)
	}
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_federation_partners_key_hash ON federation_partners(key_hash)`)
	if err != nil {
		return fmt.Errorf("failed to create federation_partners key_hash index: %w", err)
	}
	fmt.Println(" OK")

	// 4. Create audit_events table
	fmt.Print(" [up] creating audit_events table...")
	_, err = db.NewCreateTable().
		Model((*models.AuditEvent)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_events_kind_created ON audit_events(kind, created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events index: %w", err)
	}
	fmt.Println(" OK")

	// 5. Seed the master tenant. The hierarchy is rooted at id 1 with path
	// "/1/"; every other tenant path descends from it.
	fmt.Print(" [up] seeding master tenant...")
	master := models.Tenant{
		ID:               models.MasterTenantID,
		Name:             "Master",
		Slug:             "master",
		Path:             models.RootPath(models.MasterTenantID),
		Depth:            0,
		AllowsSubtenants: true,
		IsActive:         true,
	}
	_, err = db.NewInsert().
		Model(&master).
		On("CONFLICT (id) DO NOTHING"). // Idempotent
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed master tenant: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260815000000 drops all trust-core tables
func down_20260815000000(ctx context.Context, db *bun.DB) error {
	tables := []string{"audit_events", "federation_partners", "users", "tenants"}
	for _, table := range tables {
		fmt.Printf(" [down] dropping %s table...", table)
		if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
