// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/promptqa/copilot/internal/ai"
	"github.com/promptqa/copilot/internal/domain"
)

// DiagHandler exposes non-secret deployment toggles, plus an admin-gated
// connectivity probe for the AI collaborator.
type DiagHandler struct {
	cfg      *domain.Config
	aiClient *ai.Client
}

func NewDiagHandler(cfg *domain.Config, aiClient *ai.Client) *DiagHandler {
	return &DiagHandler{cfg: cfg, aiClient: aiClient}
}

func (h *DiagHandler) Diag(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"mockAi":     h.cfg.OpenAI.Mock,
		"requirePro": h.cfg.RequirePro,
		"model":      h.cfg.OpenAI.Model,
	})
}

// OpenAIProbe performs a minimal round-trip against the collaborator so an
// operator can distinguish credential problems from extension problems.
func (h *DiagHandler) OpenAIProbe(w http.ResponseWriter, r *http.Request) {
	output, err := h.aiClient.Complete(r.Context(), "Return exactly: OK", "Ping")
	if err != nil {
		log.Error().Err(err).Msg("OpenAI probe failed")
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"output": output,
		"source": "openai",
	})
}
