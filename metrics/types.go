// Package metrics provides pure data types for pipeline run statistics.
// This file contains atom-level type definitions with no behavior.
package metrics

import "time"

// RunRecord represents one finished pipeline run.
type RunRecord struct {
	// ID is the run's correlation id
	ID string `json:"id"`

	// Type identifies the pipeline (see RunType constants)
	Type string `json:"type"`

	// OwnerID is the user the run belonged to
	OwnerID string `json:"owner_id"`

	// Status is "success" or "error"
	Status string `json:"status"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// ErrorKind is the classified failure kind when Status is "error"
	ErrorKind string `json:"error_kind,omitempty"`

	// FailedStage is where the run stopped when Status is "error"
	FailedStage string `json:"failed_stage,omitempty"`
}

// RunStats represents aggregated run statistics.
type RunStats struct {
	TotalRuns    int64 `json:"total_runs"`
	TotalSuccess int64 `json:"total_success"`
	TotalErrors  int64 `json:"total_errors"`

	// ByType contains per-pipeline statistics
	ByType map[string]*RunTypeStats `json:"by_type"`

	// ErrorsByKind counts failures per classified kind
	ErrorsByKind map[string]int64 `json:"errors_by_kind"`
}

// RunTypeStats represents statistics for one pipeline type.
type RunTypeStats struct {
	Count int64 `json:"count"`

	// SuccessRate is the percentage of successful runs (0-100)
	SuccessRate float64 `json:"success_rate"`

	AvgDuration time.Duration `json:"avg_duration"`
}

// Status constants for RunRecord
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Run type constants
const (
	RunTypeImageDirect  = "image_direct"
	RunTypeImageDerived = "image_derived"
	RunTypeChat         = "chat"
)
