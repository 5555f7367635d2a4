// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package farmapi

import (
	"context"
	"fmt"
)

// CleanSlate wipes every piece of offline state: the mutation queue, the id
// reconciliation map, the cache and the held-measurement buffer. Destructive
// and unrecoverable; callers gate it behind an explicit confirmation. The
// schema itself stays (there is no migration mechanism, a reset is how schema
// changes roll out).
func (s *Service) CleanSlate(ctx context.Context) error {
	if err := s.client.ClearQueue(ctx); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	if err := s.client.IDMap.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear id map: %w", err)
	}
	if err := s.client.Cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	s.held.Clear()
	s.logger.Info("clean slate reset complete")
	return nil
}

// VerifyCleanSlate reports whether no offline state remains.
func (s *Service) VerifyCleanSlate(ctx context.Context) (bool, error) {
	pending, err := s.client.QueueLen(ctx)
	if err != nil {
		return false, err
	}
	var cached int
	if err := s.client.Store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`).Scan(&cached); err != nil {
		return false, fmt.Errorf("failed to count cache rows: %w", err)
	}
	var mapped int
	if err := s.client.Store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM id_map`).Scan(&mapped); err != nil {
		return false, fmt.Errorf("failed to count id map rows: %w", err)
	}
	return pending == 0 && cached == 0 && mapped == 0 && s.held.Count() == 0, nil
}
