// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptqa/copilot/internal/ai"
	"github.com/promptqa/copilot/internal/database"
	"github.com/promptqa/copilot/internal/domain"
	"github.com/promptqa/copilot/internal/lemonsqueezy"
	"github.com/promptqa/copilot/internal/models"
)

const testWebhookSecret = "whsec_test"

func testConfig() *domain.Config {
	return &domain.Config{
		AdminToken: "admin-token",
		LemonSqueezy: domain.LemonSqueezyConfig{
			WebhookSecret: testWebhookSecret,
			ProVariantIDs: "12345",
			CheckoutURL:   "https://store.example.com/checkout",
		},
		OpenAI: domain.OpenAIConfig{Model: "gpt-4.1-mini", Mock: true},
	}
}

type testEnv struct {
	server *httptest.Server
	store  *models.LicenseStore
}

func newTestEnv(t *testing.T, cfg *domain.Config) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := models.NewLicenseStore(db.Conn())

	router := NewRouter(&Dependencies{
		Config:       cfg,
		LicenseStore: store,
		AIClient:     ai.NewClient(cfg.OpenAI),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: store}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	return e.postRaw(t, path, payload, headers)
}

func (e *testEnv) postRaw(t *testing.T, path string, payload []byte, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()

	resp, err := e.server.Client().Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	return body
}

func signedWebhook(t *testing.T, env *testEnv, payload string) (*http.Response, map[string]interface{}) {
	t.Helper()

	return env.postRaw(t, "/api/lemonsqueezy/webhook", []byte(payload), map[string]string{
		"x-signature": lemonsqueezy.Sign([]byte(payload), testWebhookSecret),
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "prompt-qa-copilot", body["service"])
	assert.NotEmpty(t, body["time"])
}

func TestLicenseStatusRequiresUserID(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.get(t, "/api/license/status")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "userId is required", body["error"])
}

func TestLicenseStatusDefaultRecord(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.get(t, "/api/license/status?userId=pqc_new")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pqc_new", body["userId"])
	assert.Equal(t, "https://store.example.com/checkout", body["upgradeUrl"])

	license := body["license"].(map[string]interface{})
	assert.Equal(t, "free", license["plan"])
	assert.Equal(t, false, license["isActive"])
	assert.Equal(t, "none", license["source"])
}

func TestWebhookOrderCreatedActivatesPro(t *testing.T) {
	env := newTestEnv(t, testConfig())

	payload := `{
		"meta": {"event_name": "order_created"},
		"data": {"attributes": {
			"first_order_item": {"variant_id": 12345, "custom_data": {"user_id": "pqc_1"}}
		}}
	}`

	resp, body := signedWebhook(t, env, payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["updated"])
	assert.Equal(t, "order_created", body["event"])

	license := body["license"].(map[string]interface{})
	assert.Equal(t, true, license["isActive"])
	assert.Equal(t, "pro", license["plan"])
	assert.Equal(t, "lemonsqueezy", license["source"])
	assert.Equal(t, "12345", license["lsVariantId"])
}

func TestWebhookReplayIdempotent(t *testing.T) {
	env := newTestEnv(t, testConfig())

	payload := `{
		"meta": {"event_name": "subscription_created"},
		"data": {"attributes": {"variant_id": "12345", "status": "active", "custom_data": {"user_id": "pqc_1"}}}
	}`

	_, first := signedWebhook(t, env, payload)
	_, second := signedWebhook(t, env, payload)

	firstLicense := first["license"].(map[string]interface{})
	secondLicense := second["license"].(map[string]interface{})
	delete(firstLicense, "updatedAt")
	delete(secondLicense, "updatedAt")
	assert.Equal(t, firstLicense, secondLicense)
}

func TestWebhookCancellationRevokes(t *testing.T) {
	env := newTestEnv(t, testConfig())

	activate := `{"meta":{"event_name":"order_created"},"data":{"attributes":{"variant_id":"12345","custom_data":{"user_id":"pqc_1"}}}}`
	signedWebhook(t, env, activate)

	// Cancellation with an unrecognized variant still revokes.
	cancel := `{"meta":{"event_name":"subscription_cancelled"},"data":{"attributes":{"variant_id":"garbage","custom_data":{"user_id":"pqc_1"}}}}`
	resp, body := signedWebhook(t, env, cancel)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	license := body["license"].(map[string]interface{})
	assert.Equal(t, false, license["isActive"])
	assert.Equal(t, "free", license["plan"])
}

func TestWebhookInvalidSignature(t *testing.T) {
	env := newTestEnv(t, testConfig())

	payload := []byte(`{"meta":{"event_name":"order_created"}}`)
	resp, body := env.postRaw(t, "/api/lemonsqueezy/webhook", payload, map[string]string{
		"x-signature": lemonsqueezy.Sign(payload, "wrong-secret"),
	})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid signature", body["error"])
}

func TestWebhookMissingSignature(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, _ := env.postRaw(t, "/api/lemonsqueezy/webhook", []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookMalformedJSON(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := signedWebhook(t, env, `{"meta":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid json payload", body["error"])
}

func TestWebhookNoUserIdentifier(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := signedWebhook(t, env, `{"meta":{"event_name":"order_created"},"data":{"attributes":{"status":"paid"}}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["ignored"])
	assert.Equal(t, "no user identifier in payload", body["reason"])

	// The audit log still records the delivery with a null userId.
	events, err := env.store.RecentEvents(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order_created", events[0].EventName)
	assert.Nil(t, events[0].UserID)
}

func TestWebhookOddShapeStillAudited(t *testing.T) {
	env := newTestEnv(t, testConfig())

	// Well-formed JSON whose fields have unexpected types must flow through
	// the normal pipeline, not bounce as a 400.
	resp, body := signedWebhook(t, env, `{"meta":{"event_name":42,"test_mode":"true"},"data":{"attributes":[1,2]}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["ignored"])

	events, err := env.store.RecentEvents(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "42", events[0].EventName)
}

func TestWebhookUnmappedEvent(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := signedWebhook(t, env, `{"meta":{"event_name":"order_refunded"},"data":{"attributes":{"custom_data":{"user_id":"pqc_1"}}}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["ignored"])
	assert.Equal(t, "event not mapped", body["reason"])
}

func TestActivateRequiresAdminToken(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.postJSON(t, "/api/license/activate", map[string]any{"userId": "pqc_1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])

	// Store untouched: a follow-up status read still shows the default.
	_, statusBody := env.get(t, "/api/license/status?userId=pqc_1")
	license := statusBody["license"].(map[string]interface{})
	assert.Equal(t, false, license["isActive"])
	assert.Equal(t, "none", license["source"])
}

func TestActivateRejectsWhenTokenUnconfigured(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = ""
	env := newTestEnv(t, cfg)

	// No "open if unconfigured" for admin endpoints.
	resp, _ := env.postJSON(t, "/api/license/activate", map[string]any{"userId": "pqc_1"},
		map[string]string{"x-admin-token": ""})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestActivateManualOverride(t *testing.T) {
	env := newTestEnv(t, testConfig())
	headers := map[string]string{"x-admin-token": "admin-token"}

	resp, body := env.postJSON(t, "/api/license/activate", map[string]any{"userId": "pqc_1"}, headers)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	license := body["license"].(map[string]interface{})
	assert.Equal(t, true, license["isActive"])
	assert.Equal(t, "pro", license["plan"])
	assert.Equal(t, "manual", license["source"])

	// Explicit deactivation.
	resp, body = env.postJSON(t, "/api/license/activate",
		map[string]any{"userId": "pqc_1", "isActive": false, "plan": "free"}, headers)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	license = body["license"].(map[string]interface{})
	assert.Equal(t, false, license["isActive"])
}

func TestActivateMissingUserID(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.postJSON(t, "/api/license/activate", map[string]any{},
		map[string]string{"x-admin-token": "admin-token"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "userId is required", body["error"])
}

func TestImproveValidation(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.postJSON(t, "/api/prompt/improve", map[string]any{"text": "hi"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "userId is required", body["error"])

	resp, body = env.postJSON(t, "/api/prompt/improve", map[string]any{"userId": "pqc_1", "text": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "text is required", body["error"])
}

func TestImproveMockOutput(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.postJSON(t, "/api/prompt/improve",
		map[string]any{"userId": "pqc_1", "text": "write tests"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "openai", body["source"])
	assert.Equal(t, "gpt-4.1-mini", body["model"])
	assert.Contains(t, body["output"], "write tests")
}

func TestImproveRequiresProLicense(t *testing.T) {
	cfg := testConfig()
	cfg.RequirePro = true
	env := newTestEnv(t, cfg)

	resp, body := env.postJSON(t, "/api/prompt/improve",
		map[string]any{"userId": "pqc_free", "text": "hello"}, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "pro license required", body["error"])
	license := body["license"].(map[string]interface{})
	assert.Equal(t, false, license["isActive"])

	// Activate via webhook, then the same request succeeds.
	activate := `{"meta":{"event_name":"order_created"},"data":{"attributes":{"variant_id":"12345","custom_data":{"user_id":"pqc_free"}}}}`
	signedWebhook(t, env, activate)

	resp, _ = env.postJSON(t, "/api/prompt/improve",
		map[string]any{"userId": "pqc_free", "text": "hello"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestImproveFallsBackWhenAIUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAI.Mock = false // no key either: the collaborator call fails
	env := newTestEnv(t, cfg)

	resp, body := env.postJSON(t, "/api/prompt/improve",
		map[string]any{"userId": "pqc_1", "text": "summarize this"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "collaborator failure must stay a degraded success")
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "local-fallback", body["source"])
	assert.NotEmpty(t, body["warning"])
	assert.Contains(t, body["output"], "summarize this")
}

func TestRefineUsesContext(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.postJSON(t, "/api/prompt/refine", map[string]any{
		"userId": "pqc_1",
		"text":   "draft release notes",
		"mode":   "detailed",
		"context": map[string]any{
			"goal": "announce v2",
			"tone": "friendly",
		},
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["output"], "announce v2")
	assert.Contains(t, body["output"], "draft release notes")
}

func TestDiag(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, body := env.get(t, "/api/diag")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["mockAi"])
	assert.Equal(t, false, body["requirePro"])
	assert.Equal(t, "gpt-4.1-mini", body["model"])
}

func TestOpenAIProbeRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/admin/openai-probe", nil)
	require.NoError(t, err)
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("x-admin-token", "admin-token")
	resp, err = env.server.Client().Do(req)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[MOCK] Ping", body["output"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/prompt/improve", nil)
	require.NoError(t, err)
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "x-admin-token")
}

func TestWebhookFailOpenVariantList(t *testing.T) {
	cfg := testConfig()
	cfg.LemonSqueezy.ProVariantIDs = ""
	env := newTestEnv(t, cfg)

	payload := `{"meta":{"event_name":"order_created"},"data":{"attributes":{"variant_id":"999","custom_data":{"user_id":"pqc_1"}}}}`
	resp, body := signedWebhook(t, env, payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	license := body["license"].(map[string]interface{})
	assert.Equal(t, true, license["isActive"], "unconfigured variant list is fail-open")
	assert.Equal(t, "pro", license["plan"])
}

func TestRouterRegistersExpectedRoutes(t *testing.T) {
	router := NewRouter(&Dependencies{Config: testConfig()})

	routes := map[string]bool{}
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+strings.TrimSuffix(route, "/")] = true
		return nil
	})
	require.NoError(t, err)

	for _, want := range []string{
		"GET /health",
		"GET /api/license/status",
		"POST /api/license/activate",
		"POST /api/lemonsqueezy/webhook",
		"POST /api/prompt/improve",
		"POST /api/prompt/refine",
		"GET /api/diag",
		"GET /api/admin/openai-probe",
	} {
		assert.True(t, routes[want], "missing route %s (have %v)", want, routes)
	}
}
