// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/promptqa/copilot/internal/ai"
	"github.com/promptqa/copilot/internal/api/handlers"
	apimiddleware "github.com/promptqa/copilot/internal/api/middleware"
	"github.com/promptqa/copilot/internal/domain"
	"github.com/promptqa/copilot/internal/lemonsqueezy"
	"github.com/promptqa/copilot/internal/metrics"
	"github.com/promptqa/copilot/internal/models"
)

const serviceName = "prompt-qa-copilot"

// Dependencies holds all the dependencies needed for the API
type Dependencies struct {
	Config         *domain.Config
	LicenseStore   *models.LicenseStore
	AIClient       *ai.Client
	MetricsManager *metrics.Manager
}

// NewRouter creates and configures the main application router
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(apimiddleware.HTTPLogger)
	r.Use(apimiddleware.CORS)

	cfg := deps.Config

	licenseHandler := handlers.NewLicenseHandler(deps.LicenseStore, cfg.LemonSqueezy.CheckoutURL)
	webhookHandler := handlers.NewWebhookHandler(
		deps.LicenseStore,
		lemonsqueezy.NewClassifier(cfg.LemonSqueezy.ProVariantIDList()),
		cfg.LemonSqueezy.WebhookSecret,
		deps.MetricsManager,
	)
	promptHandler := handlers.NewPromptHandler(deps.LicenseStore, deps.AIClient, cfg.RequirePro, deps.MetricsManager)
	diagHandler := handlers.NewDiagHandler(cfg, deps.AIClient)

	r.Route("/api", func(r chi.Router) {
		licenseHandler.RegisterRoutes(r)
		webhookHandler.RegisterRoutes(r)
		promptHandler.RegisterRoutes(r)
		r.Get("/diag", diagHandler.Diag)

		// Admin endpoints: exact token match, fail closed when unset.
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.RequireAdmin(cfg.AdminToken))
			licenseHandler.RegisterAdminRoutes(r)
			r.Get("/admin/openai-probe", diagHandler.OpenAIProbe)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"service": serviceName,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	if deps.MetricsManager != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsManager.Handler())
	}

	return r
}
