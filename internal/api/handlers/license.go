// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/promptqa/copilot/internal/models"
)

// LicenseHandler serves license reads and the manual admin override.
type LicenseHandler struct {
	store       *models.LicenseStore
	checkoutURL string
}

func NewLicenseHandler(store *models.LicenseStore, checkoutURL string) *LicenseHandler {
	return &LicenseHandler{
		store:       store,
		checkoutURL: checkoutURL,
	}
}

// RegisterRoutes registers the public status route.
func (h *LicenseHandler) RegisterRoutes(r chi.Router) {
	r.Get("/license/status", h.Status)
}

// RegisterAdminRoutes registers routes that sit behind the admin token.
func (h *LicenseHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/license/activate", h.Activate)
}

// Status returns the license record for a user. Unknown users get the
// default free record, never a 404 — the extension treats absence and
// free identically.
func (h *LicenseHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	license, err := h.store.Get(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to get license")
		RespondError(w, http.StatusInternalServerError, "failed to load license")
		return
	}

	var upgradeURL *string
	if h.checkoutURL != "" {
		upgradeURL = &h.checkoutURL
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"userId":     userID,
		"license":    license,
		"upgradeUrl": upgradeURL,
	})
}

// ActivateRequest is the manual override body. Omitted fields default to
// a pro activation so the common support action is a one-field request.
type ActivateRequest struct {
	UserID   string `json:"userId"`
	Plan     string `json:"plan"`
	IsActive *bool  `json:"isActive"`
	Source   string `json:"source"`
}

// Activate applies a manual license override. Upstream diagnostic fields
// are left untouched so a later webhook investigation still sees the last
// known provider state.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	patch := models.LicensePatch{
		Plan:     models.PlanPro,
		IsActive: req.IsActive == nil || *req.IsActive,
		Source:   models.SourceManual,
	}
	if req.Plan != "" {
		patch.Plan = models.Plan(req.Plan)
	}
	if req.Source != "" {
		patch.Source = models.Source(req.Source)
	}

	license, err := h.store.Upsert(r.Context(), userID, patch)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to activate license")
		RespondError(w, http.StatusInternalServerError, "failed to update license")
		return
	}

	log.Info().
		Str("userId", userID).
		Str("plan", string(license.Plan)).
		Bool("isActive", license.IsActive).
		Msg("License manually updated")

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"license": license,
	})
}
