// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// TokenFunc returns the bearer token for API calls, or an error when no valid
// token is available. A nil TokenFunc sends unauthenticated requests.
type TokenFunc func(ctx context.Context) (string, error)

// StateObserver receives queue state for the UI-facing pending-count
// indicator: whether a replay is running and how many entries remain queued.
// Purely presentational; observers must not trigger replays from inside the
// callback.
type StateObserver func(syncing bool, pending int)

// HeldMutation is a measurement recorded against a report that has not
// synced yet, kept outside the queue until the parent report's creation
// succeeds.
type HeldMutation struct {
	ID       string // becomes the queued entry's temp id
	Mutation Mutation
}

// HeldMeasurements is the buffer backing the report→measurement cascade.
// Implementations live above the core (the domain layer owns the payloads).
type HeldMeasurements interface {
	// ByReport returns the mutations held for the given temp report id.
	// Their bodies still reference the temp id.
	ByReport(tempReportID string) []HeldMutation
	// Remove drops a held mutation once it has been durably queued.
	Remove(id string)
}

// Config holds configuration for the offline sync client.
type Config struct {
	BaseURL      string
	HTTPTimeout  time.Duration // per-call budget during replay
	Retry        BackoffPolicy // per-call retry within one pass
	ProbeTimeout time.Duration
	PollInterval time.Duration // connectivity watcher
}

// DefaultConfig returns the configuration the mobile client ships with.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:      baseURL,
		HTTPTimeout:  5 * time.Second,
		Retry:        BackoffPolicy{Attempts: 2, Base: 500 * time.Millisecond, Max: 4 * time.Second},
		ProbeTimeout: 3 * time.Second,
		PollInterval: 10 * time.Second,
	}
}

// Client owns the offline subsystem: durable store, cache, mutation queue,
// id reconciliation map, connectivity monitor and the replay processor.
type Client struct {
	Store   *Store
	Cache   *Cache
	Queue   *Queue
	IDMap   *IDMap
	Monitor *Monitor
	HTTP    *http.Client
	Token   TokenFunc
	Held    HeldMeasurements // optional cascade source, set by the domain layer

	config   *Config
	logger   *slog.Logger
	sleep    sleeper
	syncing  int32 // reentrancy guard: at most one replay at a time
	observer atomic.Value
}

// NewClient creates an offline sync client over an opened store.
func NewClient(store *Store, token TokenFunc, config *Config, logger *slog.Logger) *Client {
	if config == nil {
		config = DefaultConfig("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: config.HTTPTimeout}
	c := &Client{
		Store:  store,
		Cache:  NewCache(store),
		Queue:  NewQueue(store),
		IDMap:  NewIDMap(store),
		HTTP:   httpClient,
		Token:  token,
		config: config,
		logger: logger,
	}
	c.Monitor = NewMonitor(HTTPProber(httpClient, config.BaseURL, config.ProbeTimeout), config.PollInterval, logger)
	// A reconnect only refreshes the pending count so the UI can prompt the
	// user to sync manually; it never starts a replay.
	c.Monitor.OnChange(func(online bool) {
		if online {
			c.notify(context.Background(), false)
		}
	})
	return c
}

// SetObserver registers the pending-count indicator callback.
func (c *Client) SetObserver(fn StateObserver) {
	c.observer.Store(fn)
}

// Enqueue persists a mutation for later replay and refreshes the pending
// count.
func (c *Client) Enqueue(ctx context.Context, m Mutation) (string, error) {
	id, err := c.Queue.Enqueue(ctx, m)
	if err != nil {
		// The caller's write action must surface this; a mutation that cannot
		// be persisted is lost otherwise.
		c.logger.Error("failed to enqueue mutation", "method", m.Method, "url", m.URL, "error", err)
		return "", err
	}
	c.logger.Debug("mutation queued", "id", id, "method", m.Method, "url", m.URL, "entity", m.Entity)
	c.notify(ctx, false)
	return id, nil
}

// QueueLen returns the number of pending mutations.
func (c *Client) QueueLen(ctx context.Context) (int, error) {
	return c.Queue.Len(ctx)
}

// ClearQueue drops every pending mutation. Destructive; callers gate this
// behind a user confirmation.
func (c *Client) ClearQueue(ctx context.Context) error {
	if err := c.Queue.Clear(ctx); err != nil {
		return err
	}
	c.notify(ctx, false)
	return nil
}

// IsOnline reports current API reachability.
func (c *Client) IsOnline(ctx context.Context) bool {
	return c.Monitor.IsOnline(ctx)
}

// Call issues a single authenticated request against the remote API, outside
// the queue. This is the online write path; callers fall back to Enqueue when
// it fails with a transport error.
func (c *Client) Call(ctx context.Context, method, path string, body json.RawMessage) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.HTTPTimeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, joinURL(c.config.BaseURL, path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != nil {
		token, err := c.Token(callCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: serverMessage(data)}
	}
	return data, nil
}

// notify pushes syncing state and the current pending count to the observer,
// best effort.
func (c *Client) notify(ctx context.Context, syncing bool) {
	fn, _ := c.observer.Load().(StateObserver)
	if fn == nil {
		return
	}
	pending, err := c.Queue.Len(ctx)
	if err != nil {
		c.logger.Error("failed to read queue length for observer", "error", err)
		return
	}
	fn(syncing, pending)
}

// decodeServerID extracts a server-assigned id from a creation response body.
// The backend returns either {"id": 42} or {"report": {"id": 42}}; ids are
// stored in the map as strings regardless of wire type.
func decodeServerID(body []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return "", false
	}
	if id, ok := idFromValue(payload["id"]); ok {
		return id, true
	}
	if nested, ok := payload["report"].(map[string]any); ok {
		return idFromValue(nested["id"])
	}
	return "", false
}

func idFromValue(v any) (string, bool) {
	switch id := v.(type) {
	case json.Number:
		return id.String(), true
	case string:
		if id != "" {
			return id, true
		}
	}
	return "", false
}
