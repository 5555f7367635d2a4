// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober answers whether the remote API is currently reachable.
type Prober func(ctx context.Context) bool

// HTTPProber probes reachability with a short HEAD request against the API
// base URL. Any response, including an error status, means the network path
// is up; only transport failures count as offline.
func HTTPProber(client *http.Client, baseURL string, timeout time.Duration) Prober {
	return func(ctx context.Context) bool {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// Monitor observes network reachability transitions. It deliberately never
// triggers a replay on reconnect: the pending count is refreshed so the UI
// can prompt the user, and sync remains a manual action. This avoids replay
// storms interrupting an in-progress screen and concurrent replay triggers
// racing each other.
type Monitor struct {
	probe    Prober
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	known     bool
	listeners []func(online bool)
}

// NewMonitor creates a connectivity monitor polling with the given interval.
func NewMonitor(probe Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{probe: probe, interval: interval, logger: logger}
}

// IsOnline performs a reachability check and records the result as the last
// known state.
func (m *Monitor) IsOnline(ctx context.Context) bool {
	online := m.probe(ctx)
	m.setState(online)
	return online
}

// OnChange registers a callback invoked on every observed transition.
// Callbacks run on the watcher goroutine and must not block.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Watch polls reachability until ctx is cancelled, notifying listeners on
// transitions.
func (m *Monitor) Watch(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.setState(m.probe(ctx))
		}
	}
}

func (m *Monitor) setState(online bool) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	listeners := make([]func(bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Debug("connectivity changed", "online", online)
	for _, fn := range listeners {
		fn(online)
	}
}

// LastKnown returns the most recently observed state without probing.
func (m *Monitor) LastKnown() (online bool, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, m.known
}
