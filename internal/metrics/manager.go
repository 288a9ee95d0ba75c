// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Manager owns the Prometheus registry. All record methods are safe on a
// nil receiver so handlers need no metrics-enabled branching.
type Manager struct {
	registry *prometheus.Registry

	webhookEvents  *prometheus.CounterVec
	promptRequests *prometheus.CounterVec
	aiDuration     *prometheus.HistogramVec
}

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	m := &Manager{
		registry: registry,
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_webhook_events_total",
			Help: "Webhook deliveries by event name and outcome (updated, ignored, rejected, error)",
		}, []string{"event", "outcome"}),
		promptRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_prompt_requests_total",
			Help: "Prompt rewrite requests by endpoint and output source (openai, local-fallback, denied)",
		}, []string{"endpoint", "source"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "copilot_ai_request_duration_seconds",
			Help:    "Duration of AI collaborator calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	registry.MustRegister(m.webhookEvents, m.promptRequests, m.aiDuration)

	log.Info().Msg("Metrics manager initialized")

	return m
}

func (m *Manager) RecordWebhookEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Manager) RecordPromptRequest(endpoint, source string) {
	if m == nil {
		return
	}
	m.promptRequests.WithLabelValues(endpoint, source).Inc()
}

func (m *Manager) RecordAIDuration(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Handler serves the registry in the standard exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
