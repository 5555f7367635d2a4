package offsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingSleeper captures requested delays without actually waiting.
func recordingSleeper(delays *[]time.Duration) sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := withRetry(context.Background(), BackoffPolicy{Attempts: 3, Base: 500 * time.Millisecond},
		recordingSleeper(&delays), func(ctx context.Context) error {
			calls++
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Empty(t, delays)
}

func TestWithRetryExponentialDelays(t *testing.T) {
	var delays []time.Duration
	calls := 0
	wanted := errors.New("boom")
	err := withRetry(context.Background(), BackoffPolicy{Attempts: 3, Base: 500 * time.Millisecond},
		recordingSleeper(&delays), func(ctx context.Context) error {
			calls++
			return wanted
		})
	require.ErrorIs(t, err, wanted)
	require.Equal(t, 3, calls)
	// No wait after the final failure.
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
}

func TestWithRetryCapsDelay(t *testing.T) {
	var delays []time.Duration
	err := withRetry(context.Background(),
		BackoffPolicy{Attempts: 4, Base: 500 * time.Millisecond, Max: 700 * time.Millisecond},
		recordingSleeper(&delays), func(ctx context.Context) error {
			return errors.New("boom")
		})
	require.Error(t, err)
	require.Equal(t, []time.Duration{500 * time.Millisecond, 700 * time.Millisecond, 700 * time.Millisecond}, delays)
}

func TestWithRetryRecoversOnLaterAttempt(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := withRetry(context.Background(), BackoffPolicy{Attempts: 3, Base: time.Millisecond},
		recordingSleeper(&delays), func(ctx context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("transient")
			}
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, delays, 1)
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, BackoffPolicy{Attempts: 5, Base: time.Millisecond}, nil,
		func(ctx context.Context) error {
			calls++
			cancel()
			return errors.New("transient")
		})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
