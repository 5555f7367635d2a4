// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
)

// Result summarizes one replay pass. Success counts entries removed because
// the server accepted them; Failed counts entries removed because the server
// definitively rejected them. Entries collapsed as idempotent failures and
// entries retained for a later pass count in neither.
type Result struct {
	Success int
	Failed  int
}

// ProcessQueue replays every currently-queued mutation against the remote
// API, in dependency order, and converges the queue toward empty. It is safe
// to call from any goroutine; at most one replay runs at a time and a
// concurrent call returns ErrSyncInProgress with a zero result.
//
// Entries enqueued while the pass is running are not picked up; they wait for
// the next trigger. No per-entry failure ever aborts the pass.
func (c *Client) ProcessQueue(ctx context.Context) (Result, error) {
	if !atomic.CompareAndSwapInt32(&c.syncing, 0, 1) {
		c.logger.Info("queue replay skipped, another replay is running")
		return Result{}, ErrSyncInProgress
	}
	defer func() {
		// Clear the guard even if a pass blows up partway; a stuck flag would
		// permanently refuse to sync.
		atomic.StoreInt32(&c.syncing, 0)
		// The final indicator refresh must land even when the caller's ctx
		// died mid-pass, or the UI would stay on the last syncing=true state.
		c.notify(context.WithoutCancel(ctx), false)
	}()

	entries, err := c.Queue.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read queue for replay: %w", err)
	}
	if len(entries) == 0 {
		return Result{}, nil
	}

	c.notify(ctx, true)
	c.logger.Info("starting queue replay", "pending", len(entries))

	// Reports sort before everything else so that a measurement referencing a
	// report's temp id can resolve in the same pass; within each class the
	// original creation order holds.
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := entries[i].Entity == "report", entries[j].Entity == "report"
		if ri != rj {
			return ri
		}
		return entries[i].CreatedAt < entries[j].CreatedAt
	})

	var result Result
	for i := range entries {
		c.processEntry(ctx, &entries[i], &result)
	}

	remaining, err := c.Queue.Len(ctx)
	if err != nil {
		c.logger.Error("failed to read queue length after replay", "error", err)
	} else {
		c.logger.Info("queue replay finished",
			"success", result.Success, "failed", result.Failed, "remaining", remaining)
	}
	return result, nil
}

// processEntry handles one queue entry: remap, send, classify. Errors are
// absorbed here so the pass continues with the next entry.
func (c *Client) processEntry(ctx context.Context, entry *Entry, result *Result) {
	body, postponed, err := c.remapEntry(ctx, entry)
	if err != nil {
		c.logger.Error("failed to remap entry, leaving queued",
			"id", entry.ID, "url", entry.URL, "error", err)
		return
	}
	if postponed {
		c.logger.Debug("entry postponed, dependency not synced yet",
			"id", entry.ID, "entity", entry.Entity, "temp_id", entry.TempID)
		return
	}

	respBody, err := c.sendEntry(ctx, entry, body)
	if err == nil {
		c.completeEntry(ctx, entry, respBody)
		result.Success++
		return
	}

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		// No HTTP status means network failure or timeout: recoverable, the
		// entry stays queued for the next manual sync.
		c.logger.Info("network failure, entry retained",
			"id", entry.ID, "url", entry.URL, "error", err)
		return
	}

	switch {
	case isIdempotentFailure(entry.Method, serverErr):
		// The desired end state is already on the server (duplicate create,
		// delete of an already-deleted row). Equivalent to success, but not
		// counted.
		c.logger.Info("idempotent failure collapsed, entry removed",
			"id", entry.ID, "status", serverErr.StatusCode, "message", serverErr.Message)
		if err := c.Queue.Dequeue(ctx, entry.ID); err != nil {
			c.logger.Error("failed to dequeue collapsed entry", "id", entry.ID, "error", err)
		}
	case serverErr.StatusCode >= 400 && serverErr.StatusCode < 500:
		// A data error will never succeed as-is; retrying forever would wedge
		// the queue.
		c.logger.Warn("unrecoverable client error, entry removed",
			"id", entry.ID, "status", serverErr.StatusCode, "message", serverErr.Message)
		if err := c.Queue.Dequeue(ctx, entry.ID); err != nil {
			c.logger.Error("failed to dequeue rejected entry", "id", entry.ID, "error", err)
			return
		}
		result.Failed++
	default:
		c.logger.Info("server error, entry retained",
			"id", entry.ID, "status", serverErr.StatusCode, "message", serverErr.Message)
	}
}

// remapEntry rewrites temp-id references in the entry body via the id map.
func (c *Client) remapEntry(ctx context.Context, entry *Entry) (json.RawMessage, bool, error) {
	if len(entry.Body) == 0 {
		return nil, false, nil
	}
	return remapBody(ctx, c.IDMap, entry.Body)
}

// sendEntry issues the entry's HTTP call with merged headers and bounded
// retry. It returns the response body on 2xx; a non-2xx surfaces as a
// *ServerError, a transport failure as the underlying error.
func (c *Client) sendEntry(ctx context.Context, entry *Entry, body json.RawMessage) ([]byte, error) {
	url := joinURL(c.config.BaseURL, entry.URL)

	var respBody []byte
	err := withRetry(ctx, c.config.Retry, c.sleep, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.config.HTTPTimeout)
		defer cancel()

		var reader io.Reader
		if len(body) > 0 {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(callCtx, entry.Method, url, reader)
		if err != nil {
			return fmt.Errorf("failed to create HTTP request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		// The entry id doubles as a request id so a backend with duplicate
		// detection could collapse a retried create whose response was lost.
		req.Header.Set("X-Request-Id", entry.ID)
		if c.Token != nil {
			token, err := c.Token(callCtx)
			if err != nil {
				return fmt.Errorf("failed to resolve bearer token: %w", err)
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
		for k, v := range entry.Headers {
			req.Header.Set(k, v)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send HTTP request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &ServerError{StatusCode: resp.StatusCode, Message: serverMessage(data)}
		}
		respBody = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// completeEntry records the temp→server id mapping for successful creates,
// removes the entry from the queue and, for reports, drains held measurements
// into the queue with the resolved server id.
func (c *Client) completeEntry(ctx context.Context, entry *Entry, respBody []byte) {
	var serverID string
	if entry.Method == http.MethodPost && entry.Entity != "" && entry.TempID != "" {
		if id, ok := decodeServerID(respBody); ok {
			serverID = id
			if err := c.IDMap.Record(ctx, entry.Entity, entry.TempID, id); err != nil {
				c.logger.Error("failed to record id mapping",
					"entity", entry.Entity, "temp_id", entry.TempID, "error", err)
			} else {
				c.logger.Debug("id mapping recorded",
					"entity", entry.Entity, "temp_id", entry.TempID, "server_id", id)
			}
		}
	}

	if err := c.Queue.Dequeue(ctx, entry.ID); err != nil {
		c.logger.Error("failed to dequeue completed entry", "id", entry.ID, "error", err)
	}

	if entry.Entity == "report" && entry.Method == http.MethodPost && entry.TempID != "" && serverID != "" {
		c.drainHeldMeasurements(ctx, entry.TempID)
	}
}

// drainHeldMeasurements queues measurements that were recorded against a
// report while it was still unsynced. Their bodies reference the report's
// temp id; the mapping just landed, so the remap resolves immediately. They
// are replayed on the next pass.
func (c *Client) drainHeldMeasurements(ctx context.Context, tempReportID string) {
	if c.Held == nil {
		return
	}
	held := c.Held.ByReport(tempReportID)
	if len(held) == 0 {
		return
	}
	c.logger.Info("queueing held measurements for synced report",
		"temp_report_id", tempReportID, "count", len(held))

	for _, h := range held {
		body, postponed, err := remapBody(ctx, c.IDMap, h.Mutation.Body)
		if err != nil || postponed {
			c.logger.Error("failed to resolve held measurement, keeping in buffer",
				"id", h.ID, "postponed", postponed, "error", err)
			continue
		}
		m := h.Mutation
		m.Body = body
		if _, err := c.Queue.Enqueue(ctx, m); err != nil {
			// Keep it buffered; a later report of the same pass will not match
			// it, but a manual retry can.
			c.logger.Error("failed to queue held measurement", "id", h.ID, "error", err)
			continue
		}
		c.Held.Remove(h.ID)
	}
}

// isIdempotentFailure reports whether a server rejection means the desired
// state already holds: a duplicate create, or an update/delete of a row that
// is already gone.
func isIdempotentFailure(method string, err *ServerError) bool {
	switch method {
	case http.MethodPost:
		return (err.StatusCode == http.StatusBadRequest || err.StatusCode == http.StatusConflict) &&
			strings.Contains(strings.ToLower(err.Message), "already")
	case http.MethodDelete, http.MethodPatch, http.MethodPut:
		return err.StatusCode == http.StatusNotFound
	}
	return false
}

// serverMessage pulls the optional {"message": ...} out of an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	return payload.Message
}

// joinURL joins the configured base URL with an entry's relative path,
// normalizing to exactly one slash between them.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
