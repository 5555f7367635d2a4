// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"time"
)

// BackoffPolicy describes a bounded exponential backoff: Base, Base*2,
// Base*4, ... capped at Max, for at most Attempts tries.
type BackoffPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// sleeper waits for d or returns early with the context error. Injected so
// backoff behavior is testable without real delays.
type sleeper func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withRetry runs op up to policy.Attempts times, sleeping between failures
// with exponential backoff. There is no wait after the final failure; the
// last error propagates to the caller unchanged so it can be classified.
func withRetry(ctx context.Context, policy BackoffPolicy, sleep sleeper, op func(ctx context.Context) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if sleep == nil {
		sleep = sleepWithContext
	}

	delay := policy.Base
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == policy.Attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if policy.Max > 0 && delay > policy.Max {
			delay = policy.Max
		}
	}
	return lastErr
}
