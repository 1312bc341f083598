package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/bunx"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/federation"
)

var partnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "Federation partner management commands",
	Long:  `Commands for creating and managing federation partner credentials.`,
}

var (
	partnerCreateName        string
	partnerCreateTenantID    int64
	partnerCreatePermissions []string
	partnerCreateRateLimit   int
	partnerCreateSigning     bool
)

var partnersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a federation partner",
	Long: `Creates a federation partner and prints its credentials. The API key
and signing secret are shown once and stored only as hashes or opaque
secrets; record them now.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if partnerCreateName == "" {
			return fmt.Errorf("--name is required")
		}
		if partnerCreateTenantID <= 0 {
			return fmt.Errorf("--tenant-id is required")
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		apiKey, err := federation.GenerateAPIKey()
		if err != nil {
			return fmt.Errorf("failed to generate api key: %w", err)
		}

		partner := &models.Partner{
			PlatformID:  uuid.NewString(),
			TenantID:    partnerCreateTenantID,
			Name:        partnerCreateName,
			KeyHash:     federation.HashAPIKey(apiKey),
			Permissions: permissionsJSON(partnerCreatePermissions),
			Status:      models.PartnerStatusActive,
			RateLimit:   partnerCreateRateLimit,
		}

		var signingSecret string
		if partnerCreateSigning {
			signingSecret, err = federation.GenerateSigningSecret()
			if err != nil {
				return fmt.Errorf("failed to generate signing secret: %w", err)
			}
			partner.SigningSecret = signingSecret
			partner.SigningEnabled = true
		}

		repo := repository.NewBunPartnerRepository(db)
		if err := repo.Create(context.Background(), partner); err != nil {
			return fmt.Errorf("failed to create partner: %w", err)
		}

		fmt.Printf("Partner created\n")
		fmt.Printf("  Platform ID:    %s\n", partner.PlatformID)
		fmt.Printf("  API key:        %s\n", apiKey)
		if signingSecret != "" {
			fmt.Printf("  Signing secret: %s\n", signingSecret)
			fmt.Printf("  Note: API key auth is disabled for this partner; requests must be HMAC-signed.\n")
		}
		return nil
	},
}

var partnersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List federation partners",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		repo := repository.NewBunPartnerRepository(db)
		partners, err := repo.List(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list partners: %w", err)
		}

		for _, p := range partners {
			lastUsed := "never"
			if p.LastUsedAt != nil {
				lastUsed = p.LastUsedAt.Format(time.RFC3339)
			}
			fmt.Printf("%s  tenant=%d  status=%s  signing=%t  rate=%d/h  last_used=%s  %s\n",
				p.PlatformID, p.TenantID, p.Status, p.SigningEnabled, p.RateLimit, lastUsed, p.Name)
		}
		return nil
	},
}

var partnersRotateSecretCmd = &cobra.Command{
	Use:   "rotate-secret <platform-id>",
	Short: "Rotate a partner's HMAC signing secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		repo := repository.NewBunPartnerRepository(db)
		ctx := context.Background()

		partner, err := repo.GetByPlatformID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load partner: %w", err)
		}

		secret, err := federation.GenerateSigningSecret()
		if err != nil {
			return fmt.Errorf("failed to generate signing secret: %w", err)
		}
		partner.SigningSecret = secret
		partner.SigningEnabled = true
		partner.UpdatedAt = time.Now().UTC()

		if err := repo.Update(ctx, partner); err != nil {
			return fmt.Errorf("failed to update partner: %w", err)
		}

		log.Printf("Rotated signing secret for %s", partner.PlatformID)
		fmt.Printf("  Signing secret: %s\n", secret)
		return nil
	},
}

var partnersRevokeCmd = &cobra.Command{
	Use:   "revoke <platform-id>",
	Short: "Revoke a federation partner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		repo := repository.NewBunPartnerRepository(db)
		ctx := context.Background()

		partner, err := repo.GetByPlatformID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load partner: %w", err)
		}

		partner.Status = models.PartnerStatusRevoked
		partner.UpdatedAt = time.Now().UTC()

		if err := repo.Update(ctx, partner); err != nil {
			return fmt.Errorf("failed to update partner: %w", err)
		}

		log.Printf("Revoked partner %s (%s)", partner.Name, partner.PlatformID)
		return nil
	},
}

func permissionsJSON(perms []string) string {
	cleaned := make([]string, 0, len(perms))
	for _, p := range perms {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func init() {
	partnersCreateCmd.Flags().StringVar(&partnerCreateName, "name", "", "Partner display name")
	partnersCreateCmd.Flags().Int64Var(&partnerCreateTenantID, "tenant-id", 0, "Tenant the partner is scoped to")
	partnersCreateCmd.Flags().StringSliceVar(&partnerCreatePermissions, "permissions", nil, "Capability grants (use '*' for all)")
	partnersCreateCmd.Flags().IntVar(&partnerCreateRateLimit, "rate-limit", 1000, "Requests per hour")
	partnersCreateCmd.Flags().BoolVar(&partnerCreateSigning, "signing", false, "Require HMAC request signing")

	rootCmd.AddCommand(partnersCmd)
	partnersCmd.AddCommand(partnersCreateCmd)
	partnersCmd.AddCommand(partnersListCmd)
	partnersCmd.AddCommand(partnersRotateSecretCmd)
	partnersCmd.AddCommand(partnersRevokeCmd)
}
