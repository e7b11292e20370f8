package models

import "time"

// Legacy records are read-only, in-memory snapshots of source rows.
// Field values that need coercion (dates, money) are carried as the raw
// driver value and parsed exactly once by the normalizer; they are never
// mutated after extraction.

// LegacyRestorativeTreatment is one row from the legacy restorative
// treatments table.
type LegacyRestorativeTreatment struct {
	ID            int64  // legacy primary key
	PatientCode   int64  // legacy natural-key patient identifier
	TreatmentDate any    // raw driver value, coerced by the normalizer
	CompletedDate any    // raw driver value, may be null
	Tooth         string // FDI tooth notation as stored
	Surfaces      string // surface codes as stored (e.g. "MOD")
	Description   string
	Fee           any       // raw DECIMAL value, coerced to pence
	ExtractedAt   time.Time // when this snapshot was read
}

// LegacyTreatmentPlan is one plan header row from the legacy source.
type LegacyTreatmentPlan struct {
	ID          int64
	PatientCode int64
	PlanDate    any
	Title       string
	Status      string
	Items       []LegacyTreatmentPlanItem
	ExtractedAt time.Time
}

// LegacyTreatmentPlanItem is one line of a legacy treatment plan.
type LegacyTreatmentPlanItem struct {
	ID          int64
	PlanID      int64
	Code        string
	Description string
	Tooth       string
	Fee         any
}
