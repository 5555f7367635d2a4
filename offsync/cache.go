// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Cache is a TTL-bounded read cache over the durable store, used to serve
// reference data while offline and to avoid redundant network reads.
//
// Expiry is lazy: an entry past its TTL is deleted on the read that observes
// it. There is no background sweeper.
type Cache struct {
	store *Store
	now   func() time.Time
}

// NewCache creates a cache over the given store.
func NewCache(store *Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Set upserts a value under key with the given time-to-live. The value is
// stored as JSON.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %q: %w", key, err)
	}
	_, err = c.store.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache (key, value, ttl, timestamp) VALUES (?, ?, ?, ?)
	`, key, string(data), ttl.Milliseconds(), c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

// Get loads the value under key into dest. It returns false when the key is
// absent, expired, or holds a value that no longer unmarshals; expired and
// corrupt rows are purged on the way out.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	var value string
	var ttlMs, writtenAt int64
	err := c.store.DB.QueryRowContext(ctx, `
		SELECT value, ttl, timestamp FROM cache WHERE key = ?
	`, key).Scan(&value, &ttlMs, &writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}

	if c.now().UnixMilli() > writtenAt+ttlMs {
		if _, err := c.store.DB.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
			return false, fmt.Errorf("failed to purge expired cache entry %q: %w", key, err)
		}
		return false, nil
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		// A row that no longer decodes is a miss, not an error.
		_, _ = c.store.DB.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key)
		return false, nil
	}
	return true, nil
}

// InvalidatePrefix deletes every entry whose key starts with prefix. Write
// actions call this after a successful mutation so stale reads do not outlive
// the data they shadow.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	_, err := c.store.DB.ExecContext(ctx, `DELETE FROM cache WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return fmt.Errorf("failed to invalidate cache prefix %q: %w", prefix, err)
	}
	return nil
}

// Invalidate deletes a single entry.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if _, err := c.store.DB.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to invalidate cache entry %q: %w", key, err)
	}
	return nil
}

// Clear removes every cache entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.store.DB.ExecContext(ctx, `DELETE FROM cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE metacharacters so a prefix containing "%" or "_"
// cannot widen the invalidation.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
