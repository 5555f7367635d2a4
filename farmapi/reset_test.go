package farmapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanSlate(t *testing.T) {
	_, server := newFakeAPI(func(r recordedRequest) (int, any) { return 201, nil })
	defer server.Close()
	svc, net := newTestService(t, server.URL)
	net.online.Store(false)
	ctx := context.Background()

	// Populate every kind of local state.
	result, err := svc.CreateReport(ctx, "f1", Report{Name: "r"}, nil)
	require.NoError(t, err)
	_, err = svc.CreateMeasurement(ctx, result.ReportID, MeasurementValue{Value: "1"})
	require.NoError(t, err)
	require.NoError(t, svc.Client().Cache.Set(ctx, "fields_byUser_u1", []string{"f1"}, time.Hour))
	require.NoError(t, svc.Client().IDMap.Record(ctx, "report", "temp-report-x", "9"))

	clean, err := svc.VerifyCleanSlate(ctx)
	require.NoError(t, err)
	require.False(t, clean)

	require.NoError(t, svc.CleanSlate(ctx))

	clean, err = svc.VerifyCleanSlate(ctx)
	require.NoError(t, err)
	require.True(t, clean)

	pending, err := svc.Client().QueueLen(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
	require.Zero(t, svc.Held().Count())

	// Device identity survives a reset; it lives in meta, not in the wiped
	// tables.
	id1, err := svc.Client().Store.DeviceID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id1)
}

func TestCleanSlateOnEmptyStateIsNoOp(t *testing.T) {
	_, server := newFakeAPI(func(r recordedRequest) (int, any) { return 200, nil })
	defer server.Close()
	svc, _ := newTestService(t, server.URL)
	ctx := context.Background()

	require.NoError(t, svc.CleanSlate(ctx))
	clean, err := svc.VerifyCleanSlate(ctx)
	require.NoError(t, err)
	require.True(t, clean)
}
