// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "time"

// Plan is the informational tier of a license. IsActive is the
// load-bearing authorization gate, not Plan.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Source records the provenance of the last license mutation.
type Source string

const (
	SourceNone         Source = "none"
	SourceManual       Source = "manual"
	SourceLemonSqueezy Source = "lemonsqueezy"
)

// LicenseRecord is the durable entitlement state for one user identifier.
// There is exactly one per userId; a user the store has never seen gets
// DefaultLicense rather than a not-found error.
type LicenseRecord struct {
	UserID      string     `json:"userId"`
	Plan        Plan       `json:"plan"`
	IsActive    bool       `json:"isActive"`
	Source      Source     `json:"source"`
	LsStatus    *string    `json:"lsStatus"`
	LsVariantID *string    `json:"lsVariantId"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// DefaultLicense is the record implied by absence.
func DefaultLicense(userID string) *LicenseRecord {
	return &LicenseRecord{
		UserID:   userID,
		Plan:     PlanFree,
		IsActive: false,
		Source:   SourceNone,
	}
}

// LicensePatch is a partial LicenseRecord applied over the prior record.
// Plan, IsActive and Source are always written. LsStatus and LsVariantID
// are only written when SetUpstream is true: webhook-derived patches carry
// them verbatim (including nil), manual patches leave them untouched.
type LicensePatch struct {
	Plan        Plan
	IsActive    bool
	Source      Source
	LsStatus    *string
	LsVariantID *string
	SetUpstream bool
}

// AuditEvent is one entry in the bounded, append-only webhook log. Entries
// are never mutated after insertion.
type AuditEvent struct {
	Type       string    `json:"type"`
	EventName  string    `json:"eventName"`
	UserID     *string   `json:"userId"`
	Email      *string   `json:"email"`
	VariantID  *string   `json:"variantId"`
	ReceivedAt time.Time `json:"receivedAt"`
}
