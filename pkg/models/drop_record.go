package models

import (
	"time"

	"github.com/google/uuid"
)

// DropReason is the closed taxonomy of exclusion reasons. Every record kept
// out of the destination carries exactly one of these; there is no
// "unknown" bucket - an unclassifiable drop is a bug, not a category.
type DropReason string

const (
	DropUnmappedPatient      DropReason = "unmapped_patient"
	DropInvalidDate          DropReason = "invalid_date"
	DropInvalidAmount        DropReason = "invalid_amount"
	DropDuplicateWithinBatch DropReason = "duplicate_within_batch"
	DropGuardRuleViolation   DropReason = "guard_rule_violation"
	DropNoDataInWindow       DropReason = "no_data_in_window"
)

// AllDropReasons lists the taxonomy in a stable order for reports.
func AllDropReasons() []DropReason {
	return []DropReason{
		DropUnmappedPatient,
		DropInvalidDate,
		DropInvalidAmount,
		DropDuplicateWithinBatch,
		DropGuardRuleViolation,
		DropNoDataInWindow,
	}
}

// IsValidDropReason reports whether r belongs to the closed taxonomy.
func IsValidDropReason(r DropReason) bool {
	for _, known := range AllDropReasons() {
		if known == r {
			return true
		}
	}
	return false
}

// DropRecord is one excluded legacy record. Append-only per run.
type DropRecord struct {
	ID                uuid.UUID  `json:"id"`
	RunID             uuid.UUID  `json:"run_id"`
	Domain            string     `json:"domain"`
	LegacyID          int64      `json:"legacy_id"`
	LegacyPatientCode int64      `json:"legacy_patient_code"`
	Reason            DropReason `json:"reason"`
	Detail            string     `json:"detail,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
