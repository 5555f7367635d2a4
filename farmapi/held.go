// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package farmapi

import (
	"sync"

	"github.com/marianodo/farm-track-sub000/offsync"
)

// HeldBuffer keeps measurements recorded against reports that have not synced
// yet. These live outside the mutation queue on purpose: queueing them before
// the parent report exists would only make every replay pass postpone them.
// The queue processor drains the buffer when the report's creation succeeds.
//
// The buffer is in-memory; measurements held here do not survive an app
// restart. That matches the source behavior and is acceptable because the
// parent report is durably queued and re-entering a measurement is cheap.
type HeldBuffer struct {
	mu   sync.Mutex
	held map[string][]offsync.HeldMutation // temp report id -> mutations
}

// NewHeldBuffer creates an empty buffer.
func NewHeldBuffer() *HeldBuffer {
	return &HeldBuffer{held: make(map[string][]offsync.HeldMutation)}
}

// Add holds a mutation under the given temp report id.
func (b *HeldBuffer) Add(tempReportID string, m offsync.HeldMutation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held[tempReportID] = append(b.held[tempReportID], m)
}

// ByReport returns the mutations held for a temp report id.
func (b *HeldBuffer) ByReport(tempReportID string) []offsync.HeldMutation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]offsync.HeldMutation(nil), b.held[tempReportID]...)
}

// Remove drops a held mutation by its id.
func (b *HeldBuffer) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for report, list := range b.held {
		kept := list[:0]
		for _, h := range list {
			if h.ID != id {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			delete(b.held, report)
		} else {
			b.held[report] = kept
		}
	}
}

// Count returns the total number of held mutations.
func (b *HeldBuffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, list := range b.held {
		n += len(list)
	}
	return n
}

// Clear empties the buffer.
func (b *HeldBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held = make(map[string][]offsync.HeldMutation)
}
