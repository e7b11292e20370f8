package models

import (
	"time"

	"github.com/google/uuid"
)

// Mapping origins. Manual mappings always take precedence over
// deterministic ones so an administrator can override a heuristic match.
const (
	MappingOriginDeterministic = "deterministic"
	MappingOriginManual        = "manual"
)

// PatientMapping binds a legacy patient code to exactly one destination
// patient. At most one active mapping exists per legacy code; creating a
// second is a conflict, never a silent overwrite.
type PatientMapping struct {
	ID                uuid.UUID `json:"id"`
	LegacyPatientCode int64     `json:"legacy_patient_code"`
	PatientID         uuid.UUID `json:"patient_id"`
	Origin            string    `json:"origin"` // "deterministic" or "manual"
	Note              *string   `json:"note,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Patient is the destination registry record the resolver matches against.
// Only the fields the engine reads are modeled here; the patient chart
// itself belongs to the main application.
type Patient struct {
	ID             uuid.UUID `json:"id"`
	ExternalNumber *int64    `json:"external_number,omitempty"` // stable natural key, when present
	FamilyName     string    `json:"family_name"`
	GivenName      string    `json:"given_name"`
}

// UnmappedCode is one legacy patient code with no mapping, with the number
// of already-imported rows waiting on it. Surfaced so an administrator can
// create a manual mapping and re-run or backfill.
type UnmappedCode struct {
	LegacyPatientCode int64 `json:"legacy_patient_code"`
	PendingRecords    int64 `json:"pending_records"`
}
