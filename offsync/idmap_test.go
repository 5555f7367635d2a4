package offsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDMapRecordAndLookup(t *testing.T) {
	store := newTestStore(t)
	idmap := NewIDMap(store)
	ctx := context.Background()

	_, ok, err := idmap.Lookup(ctx, "report", "temp-r1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, idmap.Record(ctx, "report", "temp-r1", "42"))
	serverID, ok, err := idmap.Lookup(ctx, "report", "temp-r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", serverID)

	// The same temp id under a different entity scope is independent.
	_, ok, err = idmap.Lookup(ctx, "field", "temp-r1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIDMapUpsert(t *testing.T) {
	store := newTestStore(t)
	idmap := NewIDMap(store)
	ctx := context.Background()

	// A retried creation re-records the mapping; it must not be rejected as a
	// duplicate.
	require.NoError(t, idmap.Record(ctx, "report", "temp-r1", "42"))
	require.NoError(t, idmap.Record(ctx, "report", "temp-r1", "42"))

	serverID, ok, err := idmap.Lookup(ctx, "report", "temp-r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", serverID)
}

func TestIDMapValidation(t *testing.T) {
	store := newTestStore(t)
	idmap := NewIDMap(store)
	ctx := context.Background()

	require.Error(t, idmap.Record(ctx, "", "temp-r1", "42"))
	require.Error(t, idmap.Record(ctx, "report", "", "42"))
	require.Error(t, idmap.Record(ctx, "report", "temp-r1", ""))
}

func TestIDMapClear(t *testing.T) {
	store := newTestStore(t)
	idmap := NewIDMap(store)
	ctx := context.Background()

	require.NoError(t, idmap.Record(ctx, "report", "temp-r1", "42"))
	require.NoError(t, idmap.Clear(ctx))

	_, ok, err := idmap.Lookup(ctx, "report", "temp-r1")
	require.NoError(t, err)
	require.False(t, ok)
}
