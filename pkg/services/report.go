package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// RunReport is the machine-readable artifact of an invocation. One shape
// serves import and verification runs; sections absent from a given run
// are omitted rather than emitted empty.
type RunReport struct {
	Domain        string                    `json:"domain"`
	Mode          string                    `json:"mode,omitempty"`
	RunID         string                    `json:"run_id,omitempty"`
	WindowFrom    *models.CalendarDate      `json:"window_from,omitempty"`
	WindowTo      *models.CalendarDate      `json:"window_to,omitempty"`
	Counts        *models.RunCounts         `json:"counts,omitempty"`
	DropsByReason map[models.DropReason]int `json:"drops_by_reason,omitempty"`
	Drops         []models.DropRecord       `json:"drops,omitempty"`
	PerPatient    []models.PatientParity    `json:"per_patient,omitempty"`
	Overall       ReportOverall             `json:"overall"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}

// ReportOverall is the single verdict operators gate on.
type ReportOverall struct {
	Status string `json:"status"`
}

// BuildImportReport shapes an import result into a report. A succeeded run
// passes; drops do not fail it, they are classified outcomes.
func BuildImportReport(result *ImportResult) *RunReport {
	status := models.ParityPass
	if result.Run.Status == models.RunStatusFailed {
		status = models.ParityFail
	}
	return &RunReport{
		Domain:        result.Run.Domain,
		Mode:          result.Run.Mode,
		RunID:         result.Run.ID.String(),
		WindowFrom:    result.Run.WindowFrom,
		WindowTo:      result.Run.WindowTo,
		Counts:        &result.Run.Counts,
		DropsByReason: result.Run.DropsByReason,
		Drops:         result.Drops,
		Overall:       ReportOverall{Status: status},
		GeneratedAt:   time.Now(),
	}
}

// BuildParityRunReport shapes a verification outcome into a report.
func BuildParityRunReport(parity *models.ParityReport) *RunReport {
	return &RunReport{
		Domain:      parity.Domain,
		WindowFrom:  parity.WindowFrom,
		WindowTo:    parity.WindowTo,
		PerPatient:  parity.Patients,
		Overall:     ReportOverall{Status: parity.Overall},
		GeneratedAt: parity.GeneratedAt,
	}
}

// WriteReport writes the report as indented JSON. An empty path writes to
// stdout so dry runs are inspectable without touching the filesystem.
func WriteReport(path string, report *RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
