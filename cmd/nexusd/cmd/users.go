package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/spf13/cobra"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/bunx"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "User management commands",
	Long:  `Commands for creating platform users and inspecting their standing.`,
}

var (
	userCreateEmail       string
	userCreateName        string
	userCreateTenantID    int64
	userCreateRole        string
	userCreateTenantSuper bool
)

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a platform user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userCreateEmail == "" {
			return fmt.Errorf("--email is required")
		}
		if _, err := mail.ParseAddress(userCreateEmail); err != nil {
			return fmt.Errorf("invalid email format: %w", err)
		}
		if userCreateTenantID <= 0 {
			return fmt.Errorf("--tenant-id is required")
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		ctx := context.Background()
		tenantRepo := repository.NewBunTenantRepository(db)
		userRepo := repository.NewBunUserRepository(db)

		if _, err := tenantRepo.GetByID(ctx, userCreateTenantID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("tenant %d does not exist", userCreateTenantID)
			}
			return fmt.Errorf("failed to load tenant: %w", err)
		}
		if _, err := userRepo.GetByEmail(ctx, userCreateEmail); err == nil {
			return fmt.Errorf("a user with email %s already exists", userCreateEmail)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		user := &models.User{
			TenantID:           userCreateTenantID,
			Email:              userCreateEmail,
			Name:               userCreateName,
			Role:               userCreateRole,
			IsTenantSuperAdmin: userCreateTenantSuper,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("Created user %d (%s) in tenant %d\n", user.ID, user.Email, user.TenantID)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&userCreateEmail, "email", "", "User email address")
	usersCreateCmd.Flags().StringVar(&userCreateName, "name", "", "Display name")
	usersCreateCmd.Flags().Int64Var(&userCreateTenantID, "tenant-id", 0, "Home tenant ID")
	usersCreateCmd.Flags().StringVar(&userCreateRole, "role", "user", "Role string (user, admin, tenant_admin, super_admin)")
	usersCreateCmd.Flags().BoolVar(&userCreateTenantSuper, "tenant-super", false, "Grant tenant-subtree super admin standing")

	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd)
}
