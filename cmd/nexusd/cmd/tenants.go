package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/bunx"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/access"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/hierarchy"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Tenant hierarchy commands",
	Long:  `Commands for inspecting and maintaining the tenant hierarchy.`,
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the tenant tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		repo := repository.NewBunTenantRepository(db)
		tenants, err := repo.List(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list tenants: %w", err)
		}

		for _, t := range tenants {
			marker := ""
			if t.AllowsSubtenants {
				marker = " [hub]"
			}
			if !t.IsActive {
				marker += " (inactive)"
			}
			fmt.Printf("%s%d %s (%s)%s\n", strings.Repeat("  ", t.Depth), t.ID, t.Name, t.Path, marker)
		}
		return nil
	},
}

var (
	tenantCreateName   string
	tenantCreateSlug   string
	tenantCreateParent int64
	tenantCreateHub    bool
	tenantCreateActor  int64
)

var tenantsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a sub-tenant",
	Long:  `Creates a tenant under the given parent, applying the same access checks as the admin API. The acting user must hold super-panel access.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tenantCreateName == "" {
			return fmt.Errorf("--name is required")
		}
		if tenantCreateActor <= 0 {
			return fmt.Errorf("--acting-user is required")
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		tenantRepo := repository.NewBunTenantRepository(db)
		userRepo := repository.NewBunUserRepository(db)

		accessSvc, err := access.NewService(userRepo, tenantRepo, audit.Discard{}, cfg.MaxHierarchyDepth, cfg.TenantCacheSize)
		if err != nil {
			return fmt.Errorf("failed to initialize access service: %w", err)
		}
		hierarchySvc := hierarchy.NewService(tenantRepo, userRepo, accessSvc, audit.Discard{})

		ctx := context.Background()
		dec, err := accessSvc.Evaluate(ctx, tenantCreateActor)
		if err != nil {
			return fmt.Errorf("failed to evaluate access: %w", err)
		}
		if !dec.Granted {
			return fmt.Errorf("access denied: %s", dec.Reason)
		}

		tenant, err := hierarchySvc.CreateTenant(ctx, dec, tenantCreateParent, hierarchy.CreateTenantInput{
			Name:             tenantCreateName,
			Slug:             tenantCreateSlug,
			AllowsSubtenants: tenantCreateHub,
		})
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}

		fmt.Printf("Created tenant %d (%s) at %s\n", tenant.ID, tenant.Slug, tenant.Path)
		return nil
	},
}

func init() {
	tenantsCreateCmd.Flags().StringVar(&tenantCreateName, "name", "", "Tenant name")
	tenantsCreateCmd.Flags().StringVar(&tenantCreateSlug, "slug", "", "URL slug (generated from name when empty)")
	tenantsCreateCmd.Flags().Int64Var(&tenantCreateParent, "parent", 1, "Parent tenant ID")
	tenantsCreateCmd.Flags().BoolVar(&tenantCreateHub, "hub", false, "Allow the new tenant to administer sub-tenants")
	tenantsCreateCmd.Flags().Int64Var(&tenantCreateActor, "acting-user", 0, "User ID the operation runs as")

	rootCmd.AddCommand(tenantsCmd)
	tenantsCmd.AddCommand(tenantsListCmd)
	tenantsCmd.AddCommand(tenantsCreateCmd)
}
