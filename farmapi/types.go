// Package farmapi is the farm-domain layer over the offline sync core: typed
// write actions for reports and measurements that either call the remote API
// directly or queue a mutation, the held-measurement buffer, reference-data
// warm-up, and the full local reset.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package farmapi

// Report is the user-entered part of a field report.
type Report struct {
	Name    string `json:"name,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Productivity is the optional dairy productivity block attached to a report.
type Productivity struct {
	TotalCows           *int     `json:"total_cows,omitempty"`
	MilkingCows         *int     `json:"milking_cows,omitempty"`
	AverageProduction   *float64 `json:"average_production,omitempty"`
	SomaticCells        *int     `json:"somatic_cells,omitempty"`
	PercentageOfFat     *float64 `json:"percentage_of_fat,omitempty"`
	PercentageOfProtein *float64 `json:"percentage_of_protein,omitempty"`
	UserID              string   `json:"userId"`
}

// MeasurementValue is one recorded value for a subject, bound to a
// pen/variable/type-of-object combination. The report reference is supplied
// separately because it may still be a temp id.
type MeasurementValue struct {
	PenVariableTypeOfObjectID int64  `json:"pen_variable_type_of_object_id"`
	Value                     string `json:"value"`
	SubjectID                 int64  `json:"subject_id"`
}

// createReportRequest is the body of POST /reports/byFieldId/:fieldId.
type createReportRequest struct {
	Report       Report        `json:"report"`
	Productivity *Productivity `json:"productivity,omitempty"`
}
