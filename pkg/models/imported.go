package models

import (
	"time"

	"github.com/google/uuid"
)

// Imported entities are the canonical destination rows. Each carries its
// legacy source identifier and legacy patient code for idempotency matching
// and forensic tracing. The destination patient id stays null until the
// legacy code resolves (import time or later backfill). These rows are
// created and updated only by the loader, never by the UI.

// RestorativeTreatment is a migrated restorative treatment.
type RestorativeTreatment struct {
	ID                uuid.UUID     `json:"id"`
	LegacyID          int64         `json:"legacy_id"`
	LegacyPatientCode int64         `json:"legacy_patient_code"`
	PatientID         *uuid.UUID    `json:"patient_id,omitempty"`
	TreatmentDate     CalendarDate  `json:"treatment_date"`
	CompletedDate     *CalendarDate `json:"completed_date,omitempty"`
	Tooth             string        `json:"tooth"`
	Surfaces          string        `json:"surfaces"`
	Description       string        `json:"description"`
	FeePence          int64         `json:"fee_pence"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TreatmentPlan is a migrated treatment plan with its items.
type TreatmentPlan struct {
	ID                uuid.UUID           `json:"id"`
	LegacyID          int64               `json:"legacy_id"`
	LegacyPatientCode int64               `json:"legacy_patient_code"`
	PatientID         *uuid.UUID          `json:"patient_id,omitempty"`
	PlanDate          CalendarDate        `json:"plan_date"`
	Title             string              `json:"title"`
	Status            string              `json:"status"`
	Items             []TreatmentPlanItem `json:"items"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// TreatmentPlanItem is one line of a migrated treatment plan. Items are
// replaced together with their plan inside the same transaction, so they
// have no independent diff state.
type TreatmentPlanItem struct {
	ID          uuid.UUID `json:"id"`
	PlanID      uuid.UUID `json:"plan_id"`
	LegacyID    int64     `json:"legacy_id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Tooth       string    `json:"tooth"`
	FeePence    int64     `json:"fee_pence"`
}
