package auth

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/marianodo/farm-track-sub000/offsync"
)

func newTestTokenSource(t *testing.T) *TokenSource {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	store, err := offsync.OpenDB(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewTokenSource(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenRoundTrip(t *testing.T) {
	ts := newTestTokenSource(t)
	ctx := context.Background()

	issued := signedToken(t, "user-7", time.Now().Add(time.Hour))
	require.NoError(t, ts.SignIn(ctx, issued))

	got, err := ts.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, issued, got)

	userID, err := ts.UserID(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-7", userID)
}

func TestTokenWithoutSession(t *testing.T) {
	ts := newTestTokenSource(t)
	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
	_, err = ts.UserID(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}

func TestTokenExpiry(t *testing.T) {
	ts := newTestTokenSource(t)
	ctx := context.Background()

	issued := signedToken(t, "user-7", time.Now().Add(time.Hour))
	require.NoError(t, ts.SignIn(ctx, issued))

	ts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := ts.Token(ctx)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSignInRejectsExpiredToken(t *testing.T) {
	ts := newTestTokenSource(t)
	expired := signedToken(t, "user-7", time.Now().Add(-time.Minute))
	require.ErrorIs(t, ts.SignIn(context.Background(), expired), ErrTokenExpired)
}

func TestSignInRejectsGarbage(t *testing.T) {
	ts := newTestTokenSource(t)
	require.Error(t, ts.SignIn(context.Background(), "not-a-jwt"))
}

func TestSignOut(t *testing.T) {
	ts := newTestTokenSource(t)
	ctx := context.Background()

	require.NoError(t, ts.SignIn(ctx, signedToken(t, "user-7", time.Now().Add(time.Hour))))
	require.NoError(t, ts.SignOut(ctx))

	_, err := ts.Token(ctx)
	require.ErrorIs(t, err, ErrNoToken)
}

func TestMalformedStoredTokenDropsSession(t *testing.T) {
	ts := newTestTokenSource(t)
	ctx := context.Background()

	// Simulate a corrupted row written by an older build.
	require.NoError(t, ts.store.SetMeta(ctx, metaTokenKey, "corrupted"))
	_, err := ts.Token(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	// The bad row is gone afterwards.
	_, found, err := ts.store.GetMeta(ctx, metaTokenKey)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSessionContext(t *testing.T) {
	ctx := SetSessionContext(context.Background(), "user-7", "device-1")
	userID, ok := GetUserID(ctx)
	require.True(t, ok)
	require.Equal(t, "user-7", userID)
	deviceID, ok := GetDeviceID(ctx)
	require.True(t, ok)
	require.Equal(t, "device-1", deviceID)

	_, ok = GetUserID(context.Background())
	require.False(t, ok)

	// Unknown pieces stay absent instead of landing as empty strings.
	ctx = SetSessionContext(context.Background(), "", "device-1")
	_, ok = GetUserID(ctx)
	require.False(t, ok)
	deviceID, ok = GetDeviceID(ctx)
	require.True(t, ok)
	require.Equal(t, "device-1", deviceID)
}
