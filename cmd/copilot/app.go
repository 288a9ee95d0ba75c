// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/promptqa/copilot/internal/ai"
	"github.com/promptqa/copilot/internal/api"
	"github.com/promptqa/copilot/internal/config"
	"github.com/promptqa/copilot/internal/database"
	"github.com/promptqa/copilot/internal/metrics"
	"github.com/promptqa/copilot/internal/models"
)

type Application struct {
	version   string
	configDir string
	dataDir   string
	logPath   string
}

func NewApplication(version, configDir, dataDir, logPath string) *Application {
	return &Application{
		version:   version,
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
	}
}

func (app *Application) runServer() {
	log.Info().Str("version", app.version).Msg("Starting copilot")

	cfg, err := config.New(app.configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.dataDir != "" {
		cfg.Config.DatabasePath = filepath.Join(app.dataDir, "copilot.db")
	}
	if app.logPath != "" {
		cfg.Config.LogPath = app.logPath
	}

	cfg.ApplyLogConfig()

	if cfg.Config.LemonSqueezy.WebhookSecret == "" {
		log.Warn().Msg("No webhook secret configured - all webhook deliveries will be rejected")
	}
	if cfg.Config.AdminToken == "" {
		log.Warn().Msg("No admin token configured - admin endpoints are disabled")
	}
	if len(cfg.Config.LemonSqueezy.ProVariantIDList()) == 0 {
		log.Warn().Msg("Pro variant allow-list is empty - ALL paid events grant pro access (fail-open)")
	}

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	licenseStore := models.NewLicenseStore(db.Conn())

	aiClient := ai.NewClient(cfg.Config.OpenAI)
	if cfg.Config.OpenAI.Mock {
		log.Info().Msg("AI mock mode enabled - no collaborator calls will be made")
	}

	var metricsManager *metrics.Manager
	if cfg.Config.MetricsEnabled {
		metricsManager = metrics.NewManager()
		log.Info().Msg("Prometheus metrics enabled at /metrics endpoint")
	}

	deps := &api.Dependencies{
		Config:         cfg.Config,
		LicenseStore:   licenseStore,
		AIClient:       aiClient,
		MetricsManager: metricsManager,
	}

	router := api.NewRouter(deps)

	// If baseURL is configured, mount the entire app under that path.
	// chi requires mount patterns to start with a slash, so normalize
	// whatever the operator configured.
	var handler http.Handler
	if mountPath := normalizeMountPath(cfg.Config.BaseURL); mountPath != "" {
		parentRouter := chi.NewRouter()
		parentRouter.Mount(mountPath, router)
		parentRouter.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, mountPath+"/", http.StatusMovedPermanently)
		})
		handler = parentRouter
	} else {
		handler = router
	}

	readTimeout := time.Duration(cfg.Config.HTTPTimeouts.ReadTimeout) * time.Second
	writeTimeout := time.Duration(cfg.Config.HTTPTimeouts.WriteTimeout) * time.Second
	idleTimeout := time.Duration(cfg.Config.HTTPTimeouts.IdleTimeout) * time.Second

	if readTimeout == 0 {
		readTimeout = 60 * time.Second
	}
	if writeTimeout == 0 {
		writeTimeout = 120 * time.Second
	}
	if idleTimeout == 0 {
		idleTimeout = 180 * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Dur("readTimeout", readTimeout).
			Dur("writeTimeout", writeTimeout).
			Dur("idleTimeout", idleTimeout).
			Msg("Starting HTTP server")
		if cfg.Config.BaseURL != "" {
			log.Info().Str("baseURL", cfg.Config.BaseURL).Msg("Serving under base URL")
		}

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// normalizeMountPath turns a configured base URL into a valid chi mount
// pattern: leading slash, no trailing slash. Empty or root means no
// mounting.
func normalizeMountPath(baseURL string) string {
	trimmed := strings.Trim(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}
