// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// IDMap is the persistent mapping from a client-generated temporary id
// (scoped to an entity type) to the server-assigned id, written as queued
// creations succeed during replay and read by the remap step before every
// attempt.
type IDMap struct {
	store *Store
}

// NewIDMap creates an id reconciliation map over the given store.
func NewIDMap(store *Store) *IDMap {
	return &IDMap{store: store}
}

// Record upserts the mapping for (entity, tempID). Upsert semantics matter: a
// retried creation must not be rejected as a duplicate mapping.
func (m *IDMap) Record(ctx context.Context, entity, tempID, serverID string) error {
	if entity == "" || tempID == "" || serverID == "" {
		return fmt.Errorf("id mapping requires entity, temp id and server id")
	}
	_, err := m.store.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO id_map (entity, temp_id, server_id) VALUES (?, ?, ?)
	`, entity, tempID, serverID)
	if err != nil {
		return fmt.Errorf("failed to record id mapping (%s, %s): %w", entity, tempID, err)
	}
	return nil
}

// Lookup returns the server id for (entity, tempID), or ok=false when the
// creation has not synced yet.
func (m *IDMap) Lookup(ctx context.Context, entity, tempID string) (string, bool, error) {
	var serverID string
	err := m.store.DB.QueryRowContext(ctx, `
		SELECT server_id FROM id_map WHERE entity = ? AND temp_id = ?
	`, entity, tempID).Scan(&serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up id mapping (%s, %s): %w", entity, tempID, err)
	}
	return serverID, true, nil
}

// Clear removes every mapping. Used only by the full local reset; mappings
// are never deleted in normal operation.
func (m *IDMap) Clear(ctx context.Context) error {
	if _, err := m.store.DB.ExecContext(ctx, `DELETE FROM id_map`); err != nil {
		return fmt.Errorf("failed to clear id map: %w", err)
	}
	return nil
}
