// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned when a replay is requested while another one
// is already running. The second trigger is a no-op.
var ErrSyncInProgress = errors.New("queue replay already in progress")

// ServerError is a non-2xx response from the remote API. The replay processor
// classifies failures by status code and message; transport errors never
// become a ServerError, so "no status" reliably means a network failure.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}
