package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/database"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/repositories"
)

// Loader performs idempotent create/update/no-op writes against the
// destination. Incoming records match existing rows by legacy source
// identifier, never by content, so a legitimate business-field change in
// the source is an update, not a duplicate. Equality uses the canonical
// representations the normalizer produced: running apply twice with an
// unchanged source yields zero creates and zero updates the second time.
//
// The loader holds the destination handle only. It has no path to the
// legacy source.
type Loader struct {
	db           *database.DB
	restoratives repositories.RestorativeRepository
	plans        repositories.TreatmentPlanRepository
	batchSize    int
	logger       *zap.Logger
}

// NewLoader creates a loader writing in transactional batches of batchSize.
func NewLoader(db *database.DB, restoratives repositories.RestorativeRepository, plans repositories.TreatmentPlanRepository, batchSize int, logger *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Loader{
		db:           db,
		restoratives: restoratives,
		plans:        plans,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// LoadRestoratives diffs and (in apply mode) writes restorative
// treatments. Counts are returned for the run report.
func (l *Loader) LoadRestoratives(ctx context.Context, apply bool, recs []*models.RestorativeTreatment) (created, updated, unchanged int, err error) {
	for start := 0; start < len(recs); start += l.batchSize {
		end := start + l.batchSize
		if end > len(recs) {
			end = len(recs)
		}
		c, u, n, err := l.loadRestorativeBatch(ctx, apply, recs[start:end])
		if err != nil {
			return created, updated, unchanged, err
		}
		created += c
		updated += u
		unchanged += n
	}
	return created, updated, unchanged, nil
}

func (l *Loader) loadRestorativeBatch(ctx context.Context, apply bool, batch []*models.RestorativeTreatment) (created, updated, unchanged int, err error) {
	ids := make([]int64, 0, len(batch))
	for _, rec := range batch {
		ids = append(ids, rec.LegacyID)
	}

	existing, err := l.restoratives.GetByLegacyIDs(ctx, ids)
	if err != nil {
		return 0, 0, 0, err
	}

	var toCreate, toUpdate []*models.RestorativeTreatment
	for _, rec := range batch {
		current, ok := existing[rec.LegacyID]
		if !ok {
			toCreate = append(toCreate, rec)
			continue
		}
		// A record that arrives unresolved never clears a patient id that
		// an earlier run or backfill already established.
		if rec.PatientID == nil && current.PatientID != nil {
			rec.PatientID = current.PatientID
		}
		if restorativeEqual(current, rec) {
			unchanged++
			continue
		}
		toUpdate = append(toUpdate, rec)
	}

	created = len(toCreate)
	updated = len(toUpdate)

	if !apply || created+updated == 0 {
		return created, updated, unchanged, nil
	}

	// One transaction per batch: it commits together or not at all, and a
	// failed batch can simply be retried because re-seen rows diff to no-op.
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	for _, rec := range toCreate {
		if err := l.restoratives.Create(ctx, tx, rec); err != nil {
			return 0, 0, 0, err
		}
	}
	for _, rec := range toUpdate {
		if err := l.restoratives.Update(ctx, tx, rec); err != nil {
			return 0, 0, 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to commit batch: %w", err)
	}

	l.logger.Debug("Committed restorative batch",
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("unchanged", unchanged))

	return created, updated, unchanged, nil
}

// LoadTreatmentPlans diffs and (in apply mode) writes treatment plans with
// their items.
func (l *Loader) LoadTreatmentPlans(ctx context.Context, apply bool, recs []*models.TreatmentPlan) (created, updated, unchanged int, err error) {
	for start := 0; start < len(recs); start += l.batchSize {
		end := start + l.batchSize
		if end > len(recs) {
			end = len(recs)
		}
		c, u, n, err := l.loadPlanBatch(ctx, apply, recs[start:end])
		if err != nil {
			return created, updated, unchanged, err
		}
		created += c
		updated += u
		unchanged += n
	}
	return created, updated, unchanged, nil
}

func (l *Loader) loadPlanBatch(ctx context.Context, apply bool, batch []*models.TreatmentPlan) (created, updated, unchanged int, err error) {
	ids := make([]int64, 0, len(batch))
	for _, rec := range batch {
		ids = append(ids, rec.LegacyID)
	}

	existing, err := l.plans.GetByLegacyIDs(ctx, ids)
	if err != nil {
		return 0, 0, 0, err
	}

	var toCreate, toUpdate []*models.TreatmentPlan
	for _, rec := range batch {
		current, ok := existing[rec.LegacyID]
		if !ok {
			toCreate = append(toCreate, rec)
			continue
		}
		if rec.PatientID == nil && current.PatientID != nil {
			rec.PatientID = current.PatientID
		}
		if treatmentPlanEqual(current, rec) {
			unchanged++
			continue
		}
		toUpdate = append(toUpdate, rec)
	}

	created = len(toCreate)
	updated = len(toUpdate)

	if !apply || created+updated == 0 {
		return created, updated, unchanged, nil
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	for _, rec := range toCreate {
		if err := l.plans.Create(ctx, tx, rec); err != nil {
			return 0, 0, 0, err
		}
	}
	for _, rec := range toUpdate {
		if err := l.plans.Update(ctx, tx, rec); err != nil {
			return 0, 0, 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to commit batch: %w", err)
	}

	return created, updated, unchanged, nil
}

// restorativeEqual compares the canonical business fields of two records.
func restorativeEqual(a, b *models.RestorativeTreatment) bool {
	return a.LegacyPatientCode == b.LegacyPatientCode &&
		uuidPtrEqual(a.PatientID, b.PatientID) &&
		a.TreatmentDate.Equal(b.TreatmentDate) &&
		datePtrEqual(a.CompletedDate, b.CompletedDate) &&
		a.Tooth == b.Tooth &&
		a.Surfaces == b.Surfaces &&
		a.Description == b.Description &&
		a.FeePence == b.FeePence
}

// treatmentPlanEqual compares plans including their item sets.
func treatmentPlanEqual(a, b *models.TreatmentPlan) bool {
	if a.LegacyPatientCode != b.LegacyPatientCode ||
		!uuidPtrEqual(a.PatientID, b.PatientID) ||
		!a.PlanDate.Equal(b.PlanDate) ||
		a.Title != b.Title ||
		a.Status != b.Status ||
		len(a.Items) != len(b.Items) {
		return false
	}

	ai := sortedItems(a.Items)
	bi := sortedItems(b.Items)
	for i := range ai {
		if ai[i].LegacyID != bi[i].LegacyID ||
			ai[i].Code != bi[i].Code ||
			ai[i].Description != bi[i].Description ||
			ai[i].Tooth != bi[i].Tooth ||
			ai[i].FeePence != bi[i].FeePence {
			return false
		}
	}
	return true
}

func sortedItems(items []models.TreatmentPlanItem) []models.TreatmentPlanItem {
	out := make([]models.TreatmentPlanItem, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].LegacyID < out[j].LegacyID })
	return out
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func datePtrEqual(a, b *models.CalendarDate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
