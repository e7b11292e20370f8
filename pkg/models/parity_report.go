package models

import "time"

// Parity verdicts. A patient with zero source rows in the window gets
// warning with NoData set - an empty source window is an expected case,
// not evidence of a migration defect.
const (
	ParityPass    = "pass"
	ParityFail    = "fail"
	ParityWarning = "warning"
)

// PatientParity is the comparison result for one patient in one domain.
type PatientParity struct {
	LegacyPatientCode int64  `json:"legacy_patient_code"`
	Status            string `json:"status"`
	NoData            bool   `json:"no_data"`
	SourceCount       int    `json:"source_count"`
	DestinationCount  int    `json:"destination_count"`
	SourceFingerprint string `json:"source_fingerprint,omitempty"`
	DestFingerprint   string `json:"dest_fingerprint,omitempty"`
	Detail            string `json:"detail,omitempty"`
}

// ParityReport is the outcome of one verification invocation. Regenerated
// whole on each run; never merged with a previous report.
type ParityReport struct {
	Domain      string          `json:"domain"`
	WindowFrom  *CalendarDate   `json:"window_from,omitempty"`
	WindowTo    *CalendarDate   `json:"window_to,omitempty"`
	Patients    []PatientParity `json:"patients"`
	Overall     string          `json:"overall"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ComputeOverall derives the report status: pass unless any patient failed.
// Warnings alone never fail the report.
func (r *ParityReport) ComputeOverall() {
	r.Overall = ParityPass
	for _, p := range r.Patients {
		if p.Status == ParityFail {
			r.Overall = ParityFail
			return
		}
	}
}
