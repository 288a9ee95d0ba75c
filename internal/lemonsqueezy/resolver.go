// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package lemonsqueezy

import (
	"strings"

	"github.com/promptqa/copilot/internal/models"
)

// Event names that grant access when the purchased variant is pro-tier.
var activationEvents = map[string]struct{}{
	"subscription_created": {},
	"subscription_resumed": {},
	"order_created":        {},
}

// Event names that revoke access unconditionally. Deactivation is never
// variant-gated: a cancelled subscription must lose access even when the
// variant metadata is missing or malformed. Ambiguous deactivation
// payloads fail toward revoking, not granting.
var deactivationEvents = map[string]struct{}{
	"subscription_cancelled": {},
	"subscription_expired":   {},
	"subscription_paused":    {},
}

// Subscription statuses that count as entitled on subscription_updated.
// past_due is still entitled; the provider retries the charge before
// moving the subscription to a terminal status.
var activeStatuses = map[string]struct{}{
	"active":   {},
	"on_trial": {},
	"past_due": {},
}

// ResolvePatch maps a parsed webhook event to a license patch, or nil when
// the event is not license-relevant and the caller must no-op.
//
// Pure function of the event content: replayed deliveries resolve to the
// same patch, which is what makes webhook handling idempotent.
func ResolvePatch(event *WebhookEvent, classifier *Classifier) *models.LicensePatch {
	if _, ok := activationEvents[event.EventName]; ok {
		return patchFor(classifier.IsProVariant(event.VariantID), event)
	}

	if _, ok := deactivationEvents[event.EventName]; ok {
		return patchFor(false, event)
	}

	if event.EventName == "subscription_updated" {
		statusActive := false
		if event.Status != nil {
			_, statusActive = activeStatuses[strings.ToLower(*event.Status)]
		}
		// Both the upstream status and the variant must agree.
		return patchFor(statusActive && classifier.IsProVariant(event.VariantID), event)
	}

	return nil
}

func patchFor(active bool, event *WebhookEvent) *models.LicensePatch {
	plan := models.PlanFree
	if active {
		plan = models.PlanPro
	}

	// Status and variant are carried verbatim (including nil) for
	// observability, independent of the isActive decision.
	return &models.LicensePatch{
		Plan:        plan,
		IsActive:    active,
		Source:      models.SourceLemonSqueezy,
		LsStatus:    event.Status,
		LsVariantID: event.VariantID,
		SetUpstream: true,
	}
}
