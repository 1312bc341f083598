// Package server assembles the HTTP surface: the super-panel admin API and
// the federation API, with the trust-core guards mounted in front of each.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/config"
	nexusmiddleware "github.com/jasperfordesq-ai/nexus-v1-sub029/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/access"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/federation"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/hierarchy"
)

// RouterOptions controls the construction of the HTTP router.
type RouterOptions struct {
	Cfg           *config.Config
	AccessService *access.Service
	Hierarchy     *hierarchy.Service
	Gateway       *federation.Gateway
	Audit         audit.Sink
	Tenants       repository.TenantRepository
	Partners      repository.PartnerRepository
	CORSOptions   *cors.Options
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Tenant-ID",
			"X-API-Key",
			"X-Federation-Signature",
			"X-Federation-Timestamp",
			"X-Federation-Platform-Id",
			"X-Federation-Tenant-Id",
		},
		ExposedHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the chi router with shared middleware, the spoofing
// guard on every authenticated route, and the two API surfaces mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	health := opts.HealthHandler
	if health == nil {
		health = defaultHealthHandler
	}
	r.Get("/healthz", health)

	tenantHeader := "X-Tenant-ID"
	signingKey := ""
	if opts.Cfg != nil {
		tenantHeader = opts.Cfg.TenantHeader
		signingKey = opts.Cfg.TokenSigningKey
	}
	sink := opts.Audit
	if sink == nil {
		sink = audit.Discard{}
	}

	// Super panel: bearer identity, spoofing guard, then the access gate.
	r.Route("/api/v2/admin/super", func(r chi.Router) {
		r.Use(nexusmiddleware.BearerIdentity(signingKey))
		r.Use(nexusmiddleware.TenantGuard(tenantHeader, sink))
		r.Use(nexusmiddleware.SuperPanel(opts.AccessService))

		h := &SuperPanelHandler{
			Access:    opts.AccessService,
			Hierarchy: opts.Hierarchy,
			Tenants:   opts.Tenants,
		}
		r.Get("/access", h.GetAccess)
		r.Get("/tenants", h.ListTenants)
		r.Post("/tenants", h.CreateTenant)
		r.Get("/tenants/{tenantID}", h.GetTenant)
		r.Get("/tenants/{tenantID}/subtree", h.GetSubtree)
		r.Get("/tenants/{tenantID}/children", h.GetChildren)
		r.Put("/tenants/{tenantID}", h.UpdateTenant)
		r.Delete("/tenants/{tenantID}", h.DeleteTenant)
		r.Post("/tenants/{tenantID}/move", h.MoveTenant)
		r.Post("/tenants/{tenantID}/hub", h.ToggleHub)
		r.Post("/tenants/{tenantID}/super-admins", h.AssignSuperAdmin)
		r.Delete("/tenants/{tenantID}/super-admins/{userID}", h.RevokeSuperAdmin)
	})

	// Federation: the gateway replaces ordinary session auth entirely.
	r.Route("/api/federation/v2", func(r chi.Router) {
		r.Use(nexusmiddleware.FederationAuth(opts.Gateway))

		h := &FederationHandler{Tenants: opts.Tenants}
		r.Get("/whoami", h.WhoAmI)
		r.With(nexusmiddleware.RequirePermission("members")).
			Get("/members", h.ListMembers)
		r.With(nexusmiddleware.RequirePermission("listings")).
			Get("/listings", h.ListListings)
	})

	return r
}
