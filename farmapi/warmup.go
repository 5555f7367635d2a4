// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package farmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// warmupTTL bounds how long pre-fetched reference data serves offline reads.
const warmupTTL = time.Hour

// Warmup bulk-fetches the reference data a measurement session needs (fields,
// type-of-objects, variables, pens per field) and caches it so the app stays
// usable offline. Best effort: each dataset that fails is logged and skipped,
// the rest still land.
func (s *Service) Warmup(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id must not be empty")
	}
	if !s.client.IsOnline(ctx) {
		s.logger.Info("warm-up skipped, offline")
		return nil
	}

	fieldsRaw, err := s.cacheEndpoint(ctx, "/fields/byUserId/"+userID, "fields_byUser_"+userID)
	if err != nil {
		// Without the field list nothing below has an anchor.
		return fmt.Errorf("failed to warm up fields: %w", err)
	}

	if _, err := s.cacheEndpoint(ctx, "/type-of-objects/byUser/"+userID, "type_of_objects_byUser_"+userID); err != nil {
		s.logger.Warn("failed to warm up type-of-objects", "error", err)
	}
	if _, err := s.cacheEndpoint(ctx, "/variables/byUser/"+userID, "variables_byUser_"+userID); err != nil {
		s.logger.Warn("failed to warm up variables", "error", err)
	}

	var fields []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(fieldsRaw, &fields); err != nil {
		return fmt.Errorf("failed to decode field list: %w", err)
	}

	for _, field := range fields {
		key := "pens_byField_" + field.ID + "_withObjects"
		if _, err := s.cacheEndpoint(ctx, "/pens/byField/"+field.ID+"?withObjects=true", key); err != nil {
			s.logger.Warn("failed to warm up pens", "field_id", field.ID, "error", err)
		}
		if _, err := s.cacheEndpoint(ctx, "/reports/byFieldId/"+field.ID, "reports_byField_"+field.ID); err != nil {
			s.logger.Warn("failed to warm up reports", "field_id", field.ID, "error", err)
		}
	}

	s.logger.Info("warm-up complete", "fields", len(fields))
	return nil
}

// cacheEndpoint fetches an endpoint and stores the raw JSON under key.
func (s *Service) cacheEndpoint(ctx context.Context, path, key string) (json.RawMessage, error) {
	data, err := s.client.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := s.client.Cache.Set(ctx, key, json.RawMessage(data), warmupTTL); err != nil {
		return nil, err
	}
	return data, nil
}
