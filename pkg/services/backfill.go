package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/repositories"
)

// Backfiller links previously imported rows that still carry a null
// patient id to patients whose mappings arrived later. It runs in bounded
// chunks ordered by legacy id, so an interrupted backfill resumes cleanly
// and a huge backlog never turns into one long-running statement.
type Backfiller struct {
	restoratives repositories.RestorativeRepository
	plans        repositories.TreatmentPlanRepository
	chunkSize    int
	logger       *zap.Logger
}

// NewBackfiller creates a backfiller working in chunks of chunkSize rows.
func NewBackfiller(restoratives repositories.RestorativeRepository, plans repositories.TreatmentPlanRepository, chunkSize int, logger *zap.Logger) *Backfiller {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Backfiller{
		restoratives: restoratives,
		plans:        plans,
		chunkSize:    chunkSize,
		logger:       logger,
	}
}

// BackfillResult summarizes one backfill invocation.
type BackfillResult struct {
	Domain    string `json:"domain"`
	Mode      string `json:"mode"`
	Backlog   int64  `json:"backlog"`
	Linked    int64  `json:"linked"`
	Remaining int64  `json:"remaining"`
	Chunks    int    `json:"chunks"`
}

// Run backfills one domain. In dry_run mode it reports the backlog and
// writes nothing; in apply mode it links rows chunk by chunk until no
// linkable rows remain.
func (b *Backfiller) Run(ctx context.Context, domain string, apply bool) (*BackfillResult, error) {
	repo, err := b.repoFor(domain)
	if err != nil {
		return nil, err
	}

	backlog, err := repo.CountBackfillable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count backfillable rows: %w", err)
	}

	result := &BackfillResult{
		Domain:    domain,
		Mode:      models.ModeDryRun,
		Backlog:   backlog,
		Remaining: backlog,
	}

	if !apply {
		b.logger.Info("Backfill dry run",
			zap.String("domain", domain),
			zap.Int64("backlog", backlog))
		return result, nil
	}

	result.Mode = models.ModeApply
	for {
		linked, err := repo.BackfillPatientIDs(ctx, b.chunkSize)
		if err != nil {
			return result, fmt.Errorf("backfill chunk failed after linking %d rows: %w", result.Linked, err)
		}
		if linked == 0 {
			break
		}
		result.Linked += linked
		result.Chunks++
		b.logger.Debug("Backfilled chunk",
			zap.String("domain", domain),
			zap.Int64("linked", linked),
			zap.Int64("total", result.Linked))
	}

	// Mappings created while the backfill ran can leave new linkable rows.
	result.Remaining, err = repo.CountBackfillable(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count remaining rows: %w", err)
	}

	b.logger.Info("Backfill finished",
		zap.String("domain", domain),
		zap.Int64("linked", result.Linked),
		zap.Int64("remaining", result.Remaining),
		zap.Int("chunks", result.Chunks))

	return result, nil
}

// backfillRepo is the slice of repository behavior the backfiller needs
// from either domain.
type backfillRepo interface {
	CountBackfillable(ctx context.Context) (int64, error)
	BackfillPatientIDs(ctx context.Context, limit int) (int64, error)
}

func (b *Backfiller) repoFor(domain string) (backfillRepo, error) {
	switch domain {
	case models.DomainRestorativeTreatments:
		return b.restoratives, nil
	case models.DomainTreatmentPlans:
		return b.plans, nil
	default:
		return nil, fmt.Errorf("unknown domain %q", domain)
	}
}
