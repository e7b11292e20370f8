package models

import (
	"time"

	"github.com/google/uuid"
)

// Run modes. Apply additionally requires an explicit confirmation value at
// the CLI edge; dry_run computes the full diff but performs no writes.
const (
	ModeDryRun = "dry_run"
	ModeApply  = "apply"
)

// IsValidMode reports whether m is a known run mode.
func IsValidMode(m string) bool {
	return m == ModeDryRun || m == ModeApply
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunCounts aggregates per-run record outcomes. The accounting identity
// Processed == Created+Updated+Unchanged+Dropped holds for every completed
// run; a violation means a record was lost without classification.
type RunCounts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Dropped   int `json:"dropped"`
}

// ImportRun is the persisted metadata for one pipeline execution.
// Immutable after the run completes.
type ImportRun struct {
	ID            uuid.UUID          `json:"id"`
	Domain        string             `json:"domain"`
	Mode          string             `json:"mode"`
	PatientCodes  []int64            `json:"patient_codes,omitempty"`
	WindowFrom    *CalendarDate      `json:"window_from,omitempty"`
	WindowTo      *CalendarDate      `json:"window_to,omitempty"`
	Counts        RunCounts          `json:"counts"`
	DropsByReason map[DropReason]int `json:"drops_by_reason"`
	Status        string             `json:"status"`
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}
