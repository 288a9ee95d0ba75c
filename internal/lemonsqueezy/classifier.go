// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package lemonsqueezy

// Classifier decides whether a purchased variant entitles the buyer to the
// pro tier, based on a configured allow-list of variant IDs.
type Classifier struct {
	proVariantIDs map[string]struct{}
}

func NewClassifier(proVariantIDs []string) *Classifier {
	ids := make(map[string]struct{}, len(proVariantIDs))
	for _, id := range proVariantIDs {
		ids[id] = struct{}{}
	}
	return &Classifier{proVariantIDs: ids}
}

// IsProVariant reports whether variantID is a pro-tier SKU.
//
// An unconfigured (empty) allow-list is fail-open: every paid event counts
// as pro. This is a deliberate operator default, not an oversight — a
// freshly deployed single-product store should not lock out paying
// customers because proVariantIds was never set. A missing variantID is
// never pro, regardless of configuration.
func (c *Classifier) IsProVariant(variantID *string) bool {
	if variantID == nil || *variantID == "" {
		return false
	}

	if len(c.proVariantIDs) == 0 {
		return true
	}

	_, ok := c.proVariantIDs[*variantID]
	return ok
}
