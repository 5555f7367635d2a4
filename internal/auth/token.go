// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marianodo/farm-track-sub000/offsync"
)

var (
	// ErrNoToken means no session is stored; the user must sign in.
	ErrNoToken = errors.New("no stored session token")
	// ErrTokenExpired means the stored token's exp claim has passed.
	ErrTokenExpired = errors.New("session token expired")
)

const (
	metaTokenKey  = "auth_token"
	metaUserIDKey = "auth_user_id"
)

// TokenSource keeps the backend-issued bearer token in the local store so a
// session survives app restarts. The token is opaque to this client except
// for its exp and sub claims, which are read without signature verification;
// the backend is the only party that validates signatures.
type TokenSource struct {
	store  *offsync.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenSource creates a token source over an opened store.
func NewTokenSource(store *offsync.Store, logger *slog.Logger) *TokenSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSource{store: store, logger: logger, now: time.Now}
}

// SignIn persists a freshly issued token. The token must parse as a JWT so
// expiry can be tracked; the user id comes from the sub claim.
func (t *TokenSource) SignIn(ctx context.Context, token string) error {
	claims, err := parseClaims(token)
	if err != nil {
		return fmt.Errorf("failed to parse session token: %w", err)
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil && !exp.After(t.now()) {
		return ErrTokenExpired
	}
	if err := t.store.SetMeta(ctx, metaTokenKey, token); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	if sub, _ := claims.GetSubject(); sub != "" {
		if err := t.store.SetMeta(ctx, metaUserIDKey, sub); err != nil {
			return fmt.Errorf("failed to persist user id: %w", err)
		}
	}
	t.logger.Info("session stored")
	return nil
}

// SignOut drops the stored session.
func (t *TokenSource) SignOut(ctx context.Context) error {
	if err := t.store.DeleteMeta(ctx, metaTokenKey); err != nil {
		return fmt.Errorf("failed to remove session token: %w", err)
	}
	if err := t.store.DeleteMeta(ctx, metaUserIDKey); err != nil {
		return fmt.Errorf("failed to remove user id: %w", err)
	}
	return nil
}

// Token returns the stored bearer token, or ErrNoToken / ErrTokenExpired.
// Satisfies offsync.TokenFunc.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	token, found, err := t.store.GetMeta(ctx, metaTokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	if !found || token == "" {
		return "", ErrNoToken
	}
	claims, err := parseClaims(token)
	if err != nil {
		// A stored token we can no longer parse is as good as no session.
		t.logger.Warn("stored session token is malformed, dropping it", "error", err)
		_ = t.SignOut(ctx)
		return "", ErrNoToken
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil && !exp.After(t.now()) {
		return "", ErrTokenExpired
	}
	return token, nil
}

// UserID returns the signed-in user's id, or ErrNoToken.
func (t *TokenSource) UserID(ctx context.Context) (string, error) {
	userID, found, err := t.store.GetMeta(ctx, metaUserIDKey)
	if err != nil {
		return "", fmt.Errorf("failed to read user id: %w", err)
	}
	if !found || userID == "" {
		return "", ErrNoToken
	}
	return userID, nil
}

func parseClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
