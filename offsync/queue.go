// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mutation describes a write operation to be replayed later: the HTTP call to
// make plus enough metadata to correlate dependent entries.
type Mutation struct {
	Method  string            // POST, PUT, PATCH or DELETE
	URL     string            // relative API path, e.g. "/measurements"
	Body    json.RawMessage   // optional JSON payload
	Headers map[string]string // optional extra headers
	Entity  string            // domain entity this call affects, e.g. "report"
	TempID  string            // client-generated placeholder id for creates
}

// Entry is a queued Mutation. Entries are immutable once enqueued; the only
// mutation the queue supports afterwards is deletion.
type Entry struct {
	ID        string
	Method    string
	URL       string
	Body      json.RawMessage
	Headers   map[string]string
	Entity    string
	TempID    string
	CreatedAt int64 // epoch ms
}

// Queue is the append-only log of pending mutations.
type Queue struct {
	store *Store
	now   func() time.Time
}

// NewQueue creates a mutation queue over the given store.
func NewQueue(store *Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Enqueue persists a mutation and returns its generated id. A storage failure
// returns the error to the caller rather than dropping the mutation silently;
// the write action that could not be sent must surface it.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) (string, error) {
	switch m.Method {
	case "POST", "PUT", "PATCH", "DELETE":
	default:
		return "", fmt.Errorf("unsupported method %q", m.Method)
	}
	if m.URL == "" {
		return "", fmt.Errorf("mutation URL must not be empty")
	}

	id := uuid.New().String()
	createdAt := q.now().UnixMilli()

	var body any
	if len(m.Body) > 0 {
		body = string(m.Body)
	}
	var headers any
	if len(m.Headers) > 0 {
		data, err := json.Marshal(m.Headers)
		if err != nil {
			return "", fmt.Errorf("failed to marshal mutation headers: %w", err)
		}
		headers = string(data)
	}

	_, err := q.store.DB.ExecContext(ctx, `
		INSERT INTO queue (id, method, url, body, headers, entity, temp_id, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, m.Method, m.URL, body, headers, nullable(m.Entity), nullable(m.TempID), createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return id, nil
}

// List returns every queued entry ordered by creation time ascending.
func (q *Queue) List(ctx context.Context) ([]Entry, error) {
	rows, err := q.store.DB.QueryContext(ctx, `
		SELECT id, method, url, body, headers, entity, temp_id, createdAt
		FROM queue ORDER BY createdAt ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var body, headers, entity, tempID sql.NullString
		if err := rows.Scan(&e.ID, &e.Method, &e.URL, &body, &headers, &entity, &tempID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		if body.Valid {
			e.Body = json.RawMessage(body.String)
		}
		if headers.Valid && headers.String != "" && headers.String != "null" {
			if err := json.Unmarshal([]byte(headers.String), &e.Headers); err != nil {
				return nil, fmt.Errorf("failed to decode headers for entry %s: %w", e.ID, err)
			}
		}
		e.Entity = entity.String
		e.TempID = tempID.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue: %w", err)
	}
	return entries, nil
}

// Dequeue removes the entry with the given id. Removing an absent id is not
// an error (a prior pass may already have collapsed it).
func (q *Queue) Dequeue(ctx context.Context, id string) error {
	if _, err := q.store.DB.ExecContext(ctx, `DELETE FROM queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to dequeue entry %s: %w", id, err)
	}
	return nil
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// Clear removes every queued entry.
func (q *Queue) Clear(ctx context.Context) error {
	if _, err := q.store.DB.ExecContext(ctx, `DELETE FROM queue`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
