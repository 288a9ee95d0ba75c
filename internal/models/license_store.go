// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// eventRetention bounds the audit log; oldest entries are evicted first.
const eventRetention = 200

// LicenseStore owns all persisted license state. Callers must not cache
// records across requests: license state can change between a client's
// page-load and its next prompt request.
type LicenseStore struct {
	db *sql.DB
}

func NewLicenseStore(db *sql.DB) *LicenseStore {
	return &LicenseStore{db: db}
}

// Get returns the license record for userID. A user the store has never
// seen yields the default free record, never an error.
func (s *LicenseStore) Get(ctx context.Context, userID string) (*LicenseRecord, error) {
	query := `
		SELECT user_id, plan, is_active, source, ls_status, ls_variant_id, updated_at
		FROM licenses
		WHERE user_id = ?
	`

	record := &LicenseRecord{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&record.UserID,
		&record.Plan,
		&record.IsActive,
		&record.Source,
		&record.LsStatus,
		&record.LsVariantID,
		&record.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return DefaultLicense(userID), nil
		}
		return nil, fmt.Errorf("failed to get license: %w", err)
	}

	return record, nil
}

// Upsert merges patch over the current record (or the default record) and
// persists the result. The merge and write happen in one statement, so
// concurrent upserts for the same userID cannot interleave; userId and
// updatedAt are always force-set here, never taken from the patch.
func (s *LicenseStore) Upsert(ctx context.Context, userID string, patch LicensePatch) (*LicenseRecord, error) {
	var query string
	if patch.SetUpstream {
		query = `
			INSERT INTO licenses (user_id, plan, is_active, source, ls_status, ls_variant_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				plan = excluded.plan,
				is_active = excluded.is_active,
				source = excluded.source,
				ls_status = excluded.ls_status,
				ls_variant_id = excluded.ls_variant_id,
				updated_at = excluded.updated_at
			RETURNING user_id, plan, is_active, source, ls_status, ls_variant_id, updated_at
		`
	} else {
		query = `
			INSERT INTO licenses (user_id, plan, is_active, source, ls_status, ls_variant_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				plan = excluded.plan,
				is_active = excluded.is_active,
				source = excluded.source,
				updated_at = excluded.updated_at
			RETURNING user_id, plan, is_active, source, ls_status, ls_variant_id, updated_at
		`
	}

	now := time.Now().UTC()
	record := &LicenseRecord{}
	err := s.db.QueryRowContext(ctx, query,
		userID,
		patch.Plan,
		patch.IsActive,
		patch.Source,
		patch.LsStatus,
		patch.LsVariantID,
		now,
	).Scan(
		&record.UserID,
		&record.Plan,
		&record.IsActive,
		&record.Source,
		&record.LsStatus,
		&record.LsVariantID,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert license: %w", err)
	}

	return record, nil
}

// AddEvent appends an entry to the audit log and truncates it to the
// retention bound. ReceivedAt is set by the store.
func (s *LicenseStore) AddEvent(ctx context.Context, event AuditEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO license_events (type, event_name, user_id, email, variant_id, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.Type, event.EventName, event.UserID, event.Email, event.VariantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM license_events
		WHERE id NOT IN (SELECT id FROM license_events ORDER BY id DESC LIMIT ?)
	`, eventRetention); err != nil {
		return fmt.Errorf("failed to truncate events: %w", err)
	}

	return tx.Commit()
}

// RecentEvents returns up to limit audit entries, newest first.
func (s *LicenseStore) RecentEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > eventRetention {
		limit = eventRetention
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, event_name, user_id, email, variant_id, received_at
		FROM license_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var event AuditEvent
		if err := rows.Scan(
			&event.Type,
			&event.EventName,
			&event.UserID,
			&event.Email,
			&event.VariantID,
			&event.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
