package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/bunx"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/server"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/access"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/federation"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/hierarchy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Nexus API server",
	Long:  `Starts the HTTP server exposing the super-panel admin API and the federation API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		// Initialize repositories
		tenantRepo := repository.NewBunTenantRepository(db)
		userRepo := repository.NewBunUserRepository(db)
		partnerRepo := repository.NewBunPartnerRepository(db)
		auditRepo := repository.NewBunAuditRepository(db)

		// Initialize services
		sink := audit.NewService(auditRepo)
		accessSvc, err := access.NewService(userRepo, tenantRepo, sink, cfg.MaxHierarchyDepth, cfg.TenantCacheSize)
		if err != nil {
			return fmt.Errorf("failed to initialize access service: %w", err)
		}
		hierarchySvc := hierarchy.NewService(tenantRepo, userRepo, accessSvc, sink)
		gateway := federation.NewGateway(partnerRepo, sink,
			cfg.Federation.TimestampTolerance,
			cfg.Federation.DefaultRateLimit)

		r := server.NewRouter(server.RouterOptions{
			Cfg:           cfg,
			AccessService: accessSvc,
			Hierarchy:     hierarchySvc,
			Gateway:       gateway,
			Audit:         sink,
			Tenants:       tenantRepo,
			Partners:      partnerRepo,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
