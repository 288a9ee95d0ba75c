// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/promptqa/copilot/internal/lemonsqueezy"
	"github.com/promptqa/copilot/internal/metrics"
	"github.com/promptqa/copilot/internal/models"
)

// maxWebhookBody bounds webhook payloads; real LemonSqueezy events are a
// few KB.
const maxWebhookBody = 256 * 1024

// WebhookHandler ingests LemonSqueezy webhook deliveries. Handlers must be
// idempotent under replay: the provider redelivers on failure, and the
// resolver being a pure function of event content makes re-application
// converge on the same record.
type WebhookHandler struct {
	store         *models.LicenseStore
	classifier    *lemonsqueezy.Classifier
	webhookSecret string
	metricsMgr    *metrics.Manager
}

func NewWebhookHandler(store *models.LicenseStore, classifier *lemonsqueezy.Classifier, webhookSecret string, metricsMgr *metrics.Manager) *WebhookHandler {
	return &WebhookHandler{
		store:         store,
		classifier:    classifier,
		webhookSecret: webhookSecret,
		metricsMgr:    metricsMgr,
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/lemonsqueezy/webhook", h.Receive)
}

// Receive verifies, parses and applies one webhook delivery.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	// Signature verification needs the exact bytes off the wire; any JSON
	// decode happens strictly after the raw body is captured.
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(rawBody) == 0 {
		RespondError(w, http.StatusBadRequest, "raw body is required")
		return
	}

	signature := r.Header.Get(lemonsqueezy.SignatureHeader)
	if !lemonsqueezy.VerifySignature(rawBody, signature, h.webhookSecret) {
		// Log the rejection but never echo payload contents back.
		log.Warn().Int("bodyBytes", len(rawBody)).Msg("Rejected webhook with invalid signature")
		h.metricsMgr.RecordWebhookEvent("unknown", "rejected")
		RespondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := lemonsqueezy.ParseWebhook(rawBody)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	// Audit before any decision: ignored deliveries are still evidence.
	auditErr := h.store.AddEvent(r.Context(), models.AuditEvent{
		Type:      "lemonsqueezy",
		EventName: event.EventName,
		UserID:    event.UserID,
		Email:     event.Email,
		VariantID: event.VariantID,
	})
	if auditErr != nil {
		log.Error().Err(auditErr).Str("event", event.EventName).Msg("Failed to record audit event")
		h.metricsMgr.RecordWebhookEvent(event.EventName, "error")
		RespondError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	if event.UserID == nil {
		log.Debug().Str("event", event.EventName).Msg("Webhook carried no user identifier")
		h.metricsMgr.RecordWebhookEvent(event.EventName, "ignored")
		RespondJSON(w, http.StatusAccepted, map[string]interface{}{
			"ok":      true,
			"ignored": true,
			"reason":  "no user identifier in payload",
		})
		return
	}

	patch := lemonsqueezy.ResolvePatch(event, h.classifier)
	if patch == nil {
		log.Debug().Str("event", event.EventName).Msg("Webhook event not license-relevant")
		h.metricsMgr.RecordWebhookEvent(event.EventName, "ignored")
		RespondJSON(w, http.StatusAccepted, map[string]interface{}{
			"ok":      true,
			"ignored": true,
			"reason":  "event not mapped",
		})
		return
	}

	license, err := h.store.Upsert(r.Context(), *event.UserID, *patch)
	if err != nil {
		log.Error().Err(err).Str("event", event.EventName).Str("userId", *event.UserID).Msg("Failed to apply license patch")
		h.metricsMgr.RecordWebhookEvent(event.EventName, "error")
		RespondError(w, http.StatusInternalServerError, "failed to update license")
		return
	}

	log.Info().
		Str("event", event.EventName).
		Str("userId", *event.UserID).
		Bool("isActive", license.IsActive).
		Bool("testMode", event.TestMode).
		Msg("Applied webhook license update")
	h.metricsMgr.RecordWebhookEvent(event.EventName, "updated")

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"updated": true,
		"license": license,
		"event":   event.EventName,
	})
}
