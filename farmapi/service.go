// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package farmapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/marianodo/farm-track-sub000/offsync"
)

// Service is the domain-facing write path. Each action tries the remote API
// directly when the network is reachable and falls back to the mutation queue
// otherwise, so the caller never loses a write.
type Service struct {
	client *offsync.Client
	held   *HeldBuffer
	logger *slog.Logger
}

// NewService wires a service over the offline client and registers the held
// buffer as the processor's cascade source.
func NewService(client *offsync.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	held := NewHeldBuffer()
	client.Held = held
	return &Service{client: client, held: held, logger: logger}
}

// Client exposes the underlying offline client (queue, cache, monitor).
func (s *Service) Client() *offsync.Client { return s.client }

// Held exposes the held-measurement buffer.
func (s *Service) Held() *HeldBuffer { return s.held }

// CreateReportResult says where a report creation landed.
type CreateReportResult struct {
	// ReportID is the server-assigned id (online path) or the temp id the
	// caller must use for measurements until the report syncs.
	ReportID string
	Queued   bool
}

// CreateReport creates a report for a field, online or queued.
func (s *Service) CreateReport(ctx context.Context, fieldID string, report Report, productivity *Productivity) (CreateReportResult, error) {
	if fieldID == "" {
		return CreateReportResult{}, fmt.Errorf("field id must not be empty")
	}
	body, err := json.Marshal(createReportRequest{Report: report, Productivity: productivity})
	if err != nil {
		return CreateReportResult{}, fmt.Errorf("failed to marshal report: %w", err)
	}
	path := "/reports/byFieldId/" + fieldID

	if s.client.IsOnline(ctx) {
		resp, err := s.client.Call(ctx, http.MethodPost, path, body)
		if err == nil {
			s.invalidateReportCaches(ctx, fieldID)
			id, ok := serverIDFromResponse(resp)
			if !ok {
				return CreateReportResult{}, fmt.Errorf("report response carries no id")
			}
			return CreateReportResult{ReportID: id}, nil
		}
		// A definitive server rejection is the caller's problem; only
		// transport failures fall through to the queue.
		var serverErr *offsync.ServerError
		if errors.As(err, &serverErr) {
			return CreateReportResult{}, err
		}
		s.logger.Info("report creation failed to send, queueing", "field_id", fieldID, "error", err)
	}

	tempID := offsync.TempIDPrefix + "report-" + uuid.New().String()
	if _, err := s.client.Enqueue(ctx, offsync.Mutation{
		Method: http.MethodPost,
		URL:    path,
		Body:   body,
		Entity: "report",
		TempID: tempID,
	}); err != nil {
		return CreateReportResult{}, fmt.Errorf("failed to queue report: %w", err)
	}
	return CreateReportResult{ReportID: tempID, Queued: true}, nil
}

// CreateMeasurement records one measurement against a report. reportID may be
// a server id or a temp id of a report that has not synced yet; in the latter
// case the measurement is held until the report's creation succeeds.
func (s *Service) CreateMeasurement(ctx context.Context, reportID string, m MeasurementValue) (queued bool, err error) {
	if reportID == "" {
		return false, fmt.Errorf("report id must not be empty")
	}

	if strings.HasPrefix(reportID, offsync.TempIDPrefix) {
		body, err := measurementBody(reportID, m)
		if err != nil {
			return false, err
		}
		id := offsync.TempIDPrefix + "measurement-" + uuid.New().String()
		s.held.Add(reportID, offsync.HeldMutation{
			ID: id,
			Mutation: offsync.Mutation{
				Method: http.MethodPost,
				URL:    "/measurements/single",
				Body:   body,
				Entity: "measurement",
				TempID: id,
			},
		})
		s.logger.Debug("measurement held for unsynced report", "temp_report_id", reportID, "id", id)
		return true, nil
	}

	numericID, err := strconv.ParseInt(reportID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid report id %q: %w", reportID, err)
	}
	body, err := measurementBody(numericID, m)
	if err != nil {
		return false, err
	}

	if s.client.IsOnline(ctx) {
		_, err := s.client.Call(ctx, http.MethodPost, "/measurements/single", body)
		if err == nil {
			return false, nil
		}
		var serverErr *offsync.ServerError
		if errors.As(err, &serverErr) {
			return false, err
		}
		s.logger.Info("measurement failed to send, queueing", "report_id", reportID, "error", err)
	}

	id := offsync.TempIDPrefix + "measurement-" + uuid.New().String()
	if _, err := s.client.Enqueue(ctx, offsync.Mutation{
		Method: http.MethodPost,
		URL:    "/measurements/single",
		Body:   body,
		Entity: "measurement",
		TempID: id,
	}); err != nil {
		return false, fmt.Errorf("failed to queue measurement: %w", err)
	}
	return true, nil
}

// DeleteReport deletes a report, online or queued. A queued delete of an
// already-gone report collapses on replay.
func (s *Service) DeleteReport(ctx context.Context, fieldID, reportID string) (queued bool, err error) {
	path := "/reports/" + reportID
	if s.client.IsOnline(ctx) {
		_, err := s.client.Call(ctx, http.MethodDelete, path, nil)
		if err == nil {
			s.invalidateReportCaches(ctx, fieldID)
			return false, nil
		}
		var serverErr *offsync.ServerError
		if errors.As(err, &serverErr) {
			return false, err
		}
	}
	if _, err := s.client.Enqueue(ctx, offsync.Mutation{
		Method: http.MethodDelete,
		URL:    path,
		Entity: "report",
	}); err != nil {
		return false, fmt.Errorf("failed to queue report deletion: %w", err)
	}
	return true, nil
}

func (s *Service) invalidateReportCaches(ctx context.Context, fieldID string) {
	if err := s.client.Cache.InvalidatePrefix(ctx, "reports_byField_"+fieldID); err != nil {
		s.logger.Error("failed to invalidate report cache", "field_id", fieldID, "error", err)
	}
}

// measurementBody builds the POST /measurements/single payload; reportRef is
// either an int64 server id or a temp id string the replay remaps later.
func measurementBody(reportRef any, m MeasurementValue) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"report_id":                      reportRef,
		"pen_variable_type_of_object_id": m.PenVariableTypeOfObjectID,
		"value":                          m.Value,
		"subject_id":                     m.SubjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal measurement: %w", err)
	}
	return body, nil
}

// serverIDFromResponse pulls the created id out of a response body.
func serverIDFromResponse(resp []byte) (string, bool) {
	var payload struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(resp, &payload); err != nil {
		return "", false
	}
	if payload.ID.String() == "" {
		return "", false
	}
	return payload.ID.String(), true
}
