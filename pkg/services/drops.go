package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// DropCollector classifies every excluded record with exactly one reason
// from the closed taxonomy. A record can be dropped at most once per run,
// and never with a reason outside the taxonomy - both are programming
// errors surfaced immediately rather than buried in the report.
type DropCollector struct {
	runID   uuid.UUID
	domain  string
	records []models.DropRecord
	seen    map[int64]bool
}

// NewDropCollector creates a collector for one run and domain.
func NewDropCollector(runID uuid.UUID, domain string) *DropCollector {
	return &DropCollector{
		runID:  runID,
		domain: domain,
		seen:   make(map[int64]bool),
	}
}

// Add records one exclusion. Returns an error if the reason is outside the
// taxonomy or the legacy id was already classified.
func (c *DropCollector) Add(legacyID, legacyPatientCode int64, reason models.DropReason, detail string) error {
	if !models.IsValidDropReason(reason) {
		return fmt.Errorf("drop reason %q is not in the taxonomy", reason)
	}
	if c.seen[legacyID] {
		return fmt.Errorf("legacy id %d already classified", legacyID)
	}
	c.seen[legacyID] = true

	c.records = append(c.records, models.DropRecord{
		RunID:             c.runID,
		Domain:            c.domain,
		LegacyID:          legacyID,
		LegacyPatientCode: legacyPatientCode,
		Reason:            reason,
		Detail:            detail,
	})
	return nil
}

// WasDropped reports whether a legacy id has been classified. The importer
// consults this so a repeated id is classified at most once; later repeats
// are skipped rather than re-added.
func (c *DropCollector) WasDropped(legacyID int64) bool {
	return c.seen[legacyID]
}

// Records returns the accumulated drop records.
func (c *DropCollector) Records() []models.DropRecord {
	return c.records
}

// Count returns the number of dropped records.
func (c *DropCollector) Count() int {
	return len(c.records)
}

// ByReason aggregates drops keyed by reason.
func (c *DropCollector) ByReason() map[models.DropReason]int {
	agg := make(map[models.DropReason]int)
	for _, rec := range c.records {
		agg[rec.Reason]++
	}
	return agg
}
