// Package offsync implements the offline-first write path for the farm-track
// mobile client: a durable mutation queue over an embedded SQLite database,
// temp-id to server-id reconciliation, and a replay processor that converges
// the local queue against the remote API.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable local store backing the cache, the mutation queue and
// the id reconciliation map. All statements are individually atomic; no
// cross-table transactions are required (a crash mid-replay may leave queue
// and id_map inconsistent by one entry, which the replay tolerates).
//
// Storage errors always propagate to the caller; the store never retries and
// never swallows.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if needed) the on-device database at path and
// bootstraps the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := OpenDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenDB wraps an existing database handle and bootstraps the schema.
// Useful for tests running against ":memory:".
func OpenDB(db *sql.DB) (*Store, error) {
	if err := initializeDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Store{DB: db}, nil
}

// initializeDatabase creates the offline tables idempotently and applies the
// connection pragmas.
func initializeDatabase(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key       TEXT PRIMARY KEY,
			value     TEXT NOT NULL,
			ttl       INTEGER NOT NULL,   -- milliseconds
			timestamp INTEGER NOT NULL    -- epoch ms at write
		)`,

		`CREATE TABLE IF NOT EXISTS queue (
			id        TEXT PRIMARY KEY,
			method    TEXT NOT NULL CHECK (method IN ('POST','PUT','PATCH','DELETE')),
			url       TEXT NOT NULL,
			body      TEXT,
			headers   TEXT,
			entity    TEXT,
			temp_id   TEXT,
			createdAt INTEGER NOT NULL    -- epoch ms
		)`,

		`CREATE TABLE IF NOT EXISTS id_map (
			entity    TEXT NOT NULL,
			temp_id   TEXT NOT NULL,
			server_id TEXT NOT NULL,
			PRIMARY KEY (entity, temp_id)
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create offline table: %w", err)
		}
	}

	return nil
}

// GetMeta returns the value stored under key in the meta table, or ok=false
// when absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query meta %q: %w", key, err)
	}
	return value, true, nil
}

// SetMeta upserts a meta key.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %q: %w", key, err)
	}
	return nil
}

// DeleteMeta removes a meta key. Removing an absent key is not an error.
func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete meta %q: %w", key, err)
	}
	return nil
}

// DeviceID returns the persisted identifier for this install, generating and
// storing one on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	id, ok, err := s.GetMeta(ctx, "device_id")
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	id = uuid.New().String()
	if err := s.SetMeta(ctx, "device_id", id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}
