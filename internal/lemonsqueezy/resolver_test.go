// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package lemonsqueezy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptqa/copilot/internal/models"
)

func TestClassifierNilAndEmptyVariant(t *testing.T) {
	classifier := NewClassifier([]string{"12345"})

	assert.False(t, classifier.IsProVariant(nil))
	empty := ""
	assert.False(t, classifier.IsProVariant(&empty))
}

func TestClassifierMembership(t *testing.T) {
	classifier := NewClassifier([]string{"12345", "67890"})

	assert.True(t, classifier.IsProVariant(strPtr("12345")))
	assert.True(t, classifier.IsProVariant(strPtr("67890")))
	assert.False(t, classifier.IsProVariant(strPtr("99999")))
}

func TestClassifierFailOpenWhenUnconfigured(t *testing.T) {
	classifier := NewClassifier(nil)

	assert.True(t, classifier.IsProVariant(strPtr("anything")))
	assert.False(t, classifier.IsProVariant(nil), "missing variant is never pro, even fail-open")
}

func TestResolveActivationGatedByVariant(t *testing.T) {
	classifier := NewClassifier([]string{"12345"})

	for _, name := range []string{"subscription_created", "subscription_resumed", "order_created"} {
		t.Run(name, func(t *testing.T) {
			patch := ResolvePatch(&WebhookEvent{
				EventName: name,
				UserID:    strPtr("pqc_1"),
				VariantID: strPtr("12345"),
			}, classifier)
			require.NotNil(t, patch)
			assert.True(t, patch.IsActive)
			assert.Equal(t, models.PlanPro, patch.Plan)
			assert.Equal(t, models.SourceLemonSqueezy, patch.Source)
			require.NotNil(t, patch.LsVariantID)
			assert.Equal(t, "12345", *patch.LsVariantID)

			// An unrelated SKU must not silently grant pro access.
			patch = ResolvePatch(&WebhookEvent{EventName: name, VariantID: strPtr("555")}, classifier)
			require.NotNil(t, patch)
			assert.False(t, patch.IsActive)
			assert.Equal(t, models.PlanFree, patch.Plan)
		})
	}
}

func TestResolveActivationFailOpen(t *testing.T) {
	patch := ResolvePatch(&WebhookEvent{
		EventName: "order_created",
		VariantID: strPtr("any-variant"),
	}, NewClassifier(nil))

	require.NotNil(t, patch)
	assert.True(t, patch.IsActive)
	assert.Equal(t, models.PlanPro, patch.Plan)
}

func TestResolveDeactivationUnconditional(t *testing.T) {
	classifier := NewClassifier([]string{"12345"})

	for _, name := range []string{"subscription_cancelled", "subscription_expired", "subscription_paused"} {
		for _, variant := range []*string{nil, strPtr("12345"), strPtr("garbage")} {
			patch := ResolvePatch(&WebhookEvent{EventName: name, VariantID: variant}, classifier)
			require.NotNil(t, patch)
			assert.False(t, patch.IsActive, "%s must deactivate regardless of variant", name)
			assert.Equal(t, models.PlanFree, patch.Plan)
			assert.Equal(t, variant, patch.LsVariantID, "variant carried verbatim")
		}
	}
}

func TestResolveSubscriptionUpdated(t *testing.T) {
	classifier := NewClassifier([]string{"12345"})

	tests := []struct {
		status  string
		variant *string
		active  bool
	}{
		{"active", strPtr("12345"), true},
		{"on_trial", strPtr("12345"), true},
		{"past_due", strPtr("12345"), true},
		{"PAST_DUE", strPtr("12345"), true},
		{"cancelled", strPtr("12345"), false},
		{"expired", strPtr("12345"), false},
		{"active", strPtr("555"), false},
		{"active", nil, false},
	}

	for _, tt := range tests {
		patch := ResolvePatch(&WebhookEvent{
			EventName: "subscription_updated",
			Status:    strPtr(tt.status),
			VariantID: tt.variant,
		}, classifier)
		require.NotNil(t, patch)
		assert.Equal(t, tt.active, patch.IsActive, "status=%s variant=%v", tt.status, tt.variant)
	}

	// Missing status deactivates.
	patch := ResolvePatch(&WebhookEvent{EventName: "subscription_updated", VariantID: strPtr("12345")}, classifier)
	require.NotNil(t, patch)
	assert.False(t, patch.IsActive)
	assert.Nil(t, patch.LsStatus)
}

func TestResolveUnmappedEventsReturnNil(t *testing.T) {
	classifier := NewClassifier(nil)

	for _, name := range []string{"unknown", "order_refunded", "license_key_created", "", "subscription_payment_success"} {
		assert.Nil(t, ResolvePatch(&WebhookEvent{EventName: name}, classifier), "event %q must not map", name)
	}
}

func TestResolveDeterministic(t *testing.T) {
	classifier := NewClassifier([]string{"12345"})
	event := &WebhookEvent{
		EventName: "subscription_updated",
		Status:    strPtr("past_due"),
		VariantID: strPtr("12345"),
	}

	first := ResolvePatch(event, classifier)
	second := ResolvePatch(event, classifier)
	assert.Equal(t, first, second)
}
