package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/config"
	"github.com/dentaldesk/legacymigrate/pkg/legacy"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/repositories"
)

// Importer orchestrates one import run: extract, normalize, resolve, load.
// Every record that enters the pipeline leaves it counted exactly once as
// created, updated, unchanged or dropped; the run fails if the accounting
// does not balance.
type Importer struct {
	extractor *legacy.Extractor
	mappings  repositories.MappingRepository
	matcher   DeterministicMatcher
	loader    *Loader
	runs      repositories.ImportRunRepository
	batchSize int
	logger    *zap.Logger
}

// NewImporter wires the import pipeline.
func NewImporter(extractor *legacy.Extractor, mappings repositories.MappingRepository, matcher DeterministicMatcher, loader *Loader, runs repositories.ImportRunRepository, batchSize int, logger *zap.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Importer{
		extractor: extractor,
		mappings:  mappings,
		matcher:   matcher,
		loader:    loader,
		runs:      runs,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ImportResult is the outcome of one run, ready for the report writer.
type ImportResult struct {
	Run   *models.ImportRun
	Drops []models.DropRecord
}

// Run executes one import invocation. Run metadata and drop records are
// persisted for dry runs too; only destination domain rows are gated on
// apply mode.
func (i *Importer) Run(ctx context.Context, inv *config.Invocation) (*ImportResult, error) {
	run := &models.ImportRun{
		Domain:       inv.Domain,
		Mode:         inv.Mode,
		PatientCodes: inv.PatientCodes,
		WindowFrom:   inv.WindowFrom,
		WindowTo:     inv.WindowTo,
	}
	if err := i.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start import run: %w", err)
	}

	i.logger.Info("Starting import run",
		zap.String("run_id", run.ID.String()),
		zap.String("domain", inv.Domain),
		zap.String("mode", inv.Mode),
		zap.Int("patient_codes", len(inv.PatientCodes)))

	drops := NewDropCollector(run.ID, inv.Domain)
	resolver := NewResolver(i.mappings, i.matcher, inv.IsApply(), i.logger)

	counts, err := i.runDomain(ctx, inv, resolver, drops)
	if err != nil {
		i.failRun(ctx, run, drops)
		return nil, err
	}

	counts.Dropped = drops.Count()
	counts.Processed = counts.Created + counts.Updated + counts.Unchanged + counts.Dropped
	if counts.Processed != counts.streamed {
		i.failRun(ctx, run, drops)
		return nil, fmt.Errorf("run accounting mismatch: streamed %d records but classified %d",
			counts.streamed, counts.Processed)
	}

	run.Counts = models.RunCounts{
		Processed: counts.Processed,
		Created:   counts.Created,
		Updated:   counts.Updated,
		Unchanged: counts.Unchanged,
		Dropped:   counts.Dropped,
	}
	run.DropsByReason = drops.ByReason()
	run.Status = models.RunStatusSucceeded

	if err := i.runs.AddDrops(ctx, drops.Records()); err != nil {
		return nil, fmt.Errorf("failed to persist drop records: %w", err)
	}
	if err := i.runs.Complete(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to complete import run: %w", err)
	}

	i.logger.Info("Import run finished",
		zap.String("run_id", run.ID.String()),
		zap.Int("processed", run.Counts.Processed),
		zap.Int("created", run.Counts.Created),
		zap.Int("updated", run.Counts.Updated),
		zap.Int("unchanged", run.Counts.Unchanged),
		zap.Int("dropped", run.Counts.Dropped))

	return &ImportResult{Run: run, Drops: drops.Records()}, nil
}

type domainCounts struct {
	streamed  int
	Processed int
	Created   int
	Updated   int
	Unchanged int
	Dropped   int
}

func (i *Importer) runDomain(ctx context.Context, inv *config.Invocation, resolver *Resolver, drops *DropCollector) (*domainCounts, error) {
	switch inv.Domain {
	case models.DomainRestorativeTreatments:
		return i.runRestoratives(ctx, inv, resolver, drops)
	case models.DomainTreatmentPlans:
		return i.runTreatmentPlans(ctx, inv, resolver, drops)
	default:
		return nil, fmt.Errorf("unknown domain %q", inv.Domain)
	}
}

func (i *Importer) runRestoratives(ctx context.Context, inv *config.Invocation, resolver *Resolver, drops *DropCollector) (*domainCounts, error) {
	counts := &domainCounts{}
	normalizer := NewNormalizer()
	scope := scopeFromInvocation(inv)

	var buffer []*models.RestorativeTreatment
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		c, u, n, err := i.loader.LoadRestoratives(ctx, inv.IsApply(), buffer)
		if err != nil {
			return err
		}
		counts.Created += c
		counts.Updated += u
		counts.Unchanged += n
		buffer = buffer[:0]
		return nil
	}

	seen := make(map[int64]bool)
	err := i.extractor.EachRestorativeTreatment(ctx, scope, func(raw models.LegacyRestorativeTreatment) error {
		// First occurrence wins when the source repeats a key.
		if seen[raw.ID] {
			counted, err := dropDuplicate(drops, raw.ID, raw.PatientCode)
			if counted {
				counts.streamed++
			}
			return err
		}
		counts.streamed++
		seen[raw.ID] = true

		rec, rejection := normalizer.NormalizeRestorative(raw)
		if rejection != nil {
			return drops.Add(raw.ID, raw.PatientCode, rejection.Reason, rejection.Detail)
		}

		patientID, err := resolver.Resolve(ctx, raw.PatientCode)
		if err != nil {
			return err
		}
		if patientID == nil && !inv.AllowUnresolved {
			return drops.Add(raw.ID, raw.PatientCode, models.DropUnmappedPatient,
				fmt.Sprintf("no mapping for legacy patient code %d", raw.PatientCode))
		}
		rec.PatientID = patientID

		buffer = append(buffer, rec)
		if len(buffer) >= i.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (i *Importer) runTreatmentPlans(ctx context.Context, inv *config.Invocation, resolver *Resolver, drops *DropCollector) (*domainCounts, error) {
	counts := &domainCounts{}
	normalizer := NewNormalizer()
	scope := scopeFromInvocation(inv)

	var buffer []*models.TreatmentPlan
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		c, u, n, err := i.loader.LoadTreatmentPlans(ctx, inv.IsApply(), buffer)
		if err != nil {
			return err
		}
		counts.Created += c
		counts.Updated += u
		counts.Unchanged += n
		buffer = buffer[:0]
		return nil
	}

	seen := make(map[int64]bool)
	err := i.extractor.EachTreatmentPlan(ctx, scope, func(raw models.LegacyTreatmentPlan) error {
		if seen[raw.ID] {
			counted, err := dropDuplicate(drops, raw.ID, raw.PatientCode)
			if counted {
				counts.streamed++
			}
			return err
		}
		counts.streamed++
		seen[raw.ID] = true

		rec, rejection := normalizer.NormalizeTreatmentPlan(raw)
		if rejection != nil {
			return drops.Add(raw.ID, raw.PatientCode, rejection.Reason, rejection.Detail)
		}

		patientID, err := resolver.Resolve(ctx, raw.PatientCode)
		if err != nil {
			return err
		}
		if patientID == nil && !inv.AllowUnresolved {
			return drops.Add(raw.ID, raw.PatientCode, models.DropUnmappedPatient,
				fmt.Sprintf("no mapping for legacy patient code %d", raw.PatientCode))
		}
		rec.PatientID = patientID

		buffer = append(buffer, rec)
		if len(buffer) >= i.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return counts, nil
}

// dropDuplicate classifies a repeated legacy id. Only the first repeat
// produces a drop record; an id the collector already classified is skipped
// outright, so a key repeated three or more times cannot abort the run.
// counted reports whether the occurrence entered the run's accounting.
func dropDuplicate(drops *DropCollector, legacyID, patientCode int64) (counted bool, err error) {
	if drops.WasDropped(legacyID) {
		return false, nil
	}
	return true, drops.Add(legacyID, patientCode, models.DropDuplicateWithinBatch,
		fmt.Sprintf("legacy id %d repeated in extraction", legacyID))
}

// failRun marks the run failed, keeping whatever drops were collected.
// Best effort: the original error is the one the caller sees.
func (i *Importer) failRun(ctx context.Context, run *models.ImportRun, drops *DropCollector) {
	run.Status = models.RunStatusFailed
	run.DropsByReason = drops.ByReason()
	if err := i.runs.AddDrops(ctx, drops.Records()); err != nil {
		i.logger.Warn("Failed to persist drops for failed run", zap.Error(err))
	}
	if err := i.runs.Complete(ctx, run); err != nil {
		i.logger.Warn("Failed to mark run as failed",
			zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}

func scopeFromInvocation(inv *config.Invocation) legacy.Scope {
	return legacy.Scope{
		PatientCodes: inv.PatientCodes,
		From:         inv.WindowFrom,
		To:           inv.WindowTo,
	}
}
