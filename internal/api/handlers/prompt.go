// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/promptqa/copilot/internal/ai"
	"github.com/promptqa/copilot/internal/metrics"
	"github.com/promptqa/copilot/internal/models"
)

// PromptHandler proxies prompt-rewrite requests to the AI collaborator,
// gated by the license check. It holds no license state: every request
// re-reads the store, since a license can flip between a page-load and the
// next prompt.
type PromptHandler struct {
	store      *models.LicenseStore
	aiClient   *ai.Client
	requirePro bool
	metricsMgr *metrics.Manager
}

func NewPromptHandler(store *models.LicenseStore, aiClient *ai.Client, requirePro bool, metricsMgr *metrics.Manager) *PromptHandler {
	return &PromptHandler{
		store:      store,
		aiClient:   aiClient,
		requirePro: requirePro,
		metricsMgr: metricsMgr,
	}
}

func (h *PromptHandler) RegisterRoutes(r chi.Router) {
	r.Post("/prompt/improve", h.Improve)
	r.Post("/prompt/refine", h.Refine)
}

// PromptRequest covers both prompt endpoints; Context is only read by
// refine.
type PromptRequest struct {
	UserID  string           `json:"userId"`
	Text    string           `json:"text"`
	Mode    string           `json:"mode"`
	Context ai.RefineContext `json:"context"`
}

func (h *PromptHandler) Improve(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "improve", func(ctx context.Context, req PromptRequest) (string, error) {
		return h.aiClient.Improve(ctx, req.Text, req.Mode)
	})
}

func (h *PromptHandler) Refine(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "refine", func(ctx context.Context, req PromptRequest) (string, error) {
		return h.aiClient.Refine(ctx, req.Text, req.Mode, req.Context)
	})
}

func (h *PromptHandler) handle(w http.ResponseWriter, r *http.Request, endpoint string, generate func(context.Context, PromptRequest) (string, error)) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Mode == "" {
		req.Mode = "concise"
	}

	if h.requirePro {
		license, err := h.store.Get(r.Context(), req.UserID)
		if err != nil {
			log.Error().Err(err).Str("userId", req.UserID).Msg("Failed to check license")
			RespondError(w, http.StatusInternalServerError, "failed to check license")
			return
		}

		if !license.IsActive {
			// The license snapshot rides along so the extension can render
			// an upgrade prompt.
			h.metricsMgr.RecordPromptRequest(endpoint, "denied")
			RespondJSON(w, http.StatusPaymentRequired, map[string]interface{}{
				"ok":      false,
				"error":   "pro license required",
				"license": license,
			})
			return
		}
	}

	start := time.Now()
	output, err := generate(r.Context(), req)
	h.metricsMgr.RecordAIDuration(endpoint, time.Since(start))

	if err != nil {
		// Degraded success: the extension always gets usable output, with
		// a warning so callers can tell the difference.
		log.Warn().Err(err).Str("endpoint", endpoint).Msg("AI collaborator failed, using local fallback")
		h.metricsMgr.RecordPromptRequest(endpoint, "local-fallback")
		RespondJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"output":  ai.LocalFallback(req.Text),
			"source":  "local-fallback",
			"warning": err.Error(),
		})
		return
	}

	h.metricsMgr.RecordPromptRequest(endpoint, "openai")
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"output": output,
		"model":  h.aiClient.Model(),
		"source": "openai",
	})
}
