package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/legacymigrate/pkg/database"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// ImportRunRepository persists run metadata and drop records. Runs and
// drops are append-only: Complete stamps the final counts once, nothing
// mutates them afterwards.
type ImportRunRepository interface {
	// Create inserts a running ImportRun and sets its id.
	Create(ctx context.Context, run *models.ImportRun) error

	// Complete stamps final counts, drop aggregates and status.
	Complete(ctx context.Context, run *models.ImportRun) error

	// AddDrops appends drop records for the run.
	AddDrops(ctx context.Context, drops []models.DropRecord) error

	// DropsByReason aggregates a run's drops keyed by reason.
	DropsByReason(ctx context.Context, runID uuid.UUID) (map[models.DropReason]int, error)
}

type importRunRepository struct {
	db *database.DB
}

// NewImportRunRepository creates the repository over the destination.
func NewImportRunRepository(db *database.DB) ImportRunRepository {
	return &importRunRepository{db: db}
}

func (r *importRunRepository) Create(ctx context.Context, run *models.ImportRun) error {
	run.StartedAt = time.Now()
	run.Status = models.RunStatusRunning

	query := `
		INSERT INTO import_runs (domain, mode, patient_codes, window_from, window_to, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		run.Domain,
		run.Mode,
		run.PatientCodes,
		calendarDatePtr(run.WindowFrom),
		calendarDatePtr(run.WindowTo),
		run.Status,
		run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

func (r *importRunRepository) Complete(ctx context.Context, run *models.ImportRun) error {
	now := time.Now()
	run.CompletedAt = &now

	dropsJSON, err := json.Marshal(run.DropsByReason)
	if err != nil {
		return fmt.Errorf("failed to encode drop aggregates: %w", err)
	}

	query := `
		UPDATE import_runs
		SET processed = $2, created = $3, updated = $4, unchanged = $5, dropped = $6,
			drops_by_reason = $7, status = $8, completed_at = $9
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		run.ID,
		run.Counts.Processed,
		run.Counts.Created,
		run.Counts.Updated,
		run.Counts.Unchanged,
		run.Counts.Dropped,
		dropsJSON,
		run.Status,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to complete import run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("import run %s not found", run.ID)
	}
	return nil
}

func (r *importRunRepository) AddDrops(ctx context.Context, drops []models.DropRecord) error {
	for i := range drops {
		d := &drops[i]
		err := r.db.QueryRow(ctx, `
			INSERT INTO import_drops (run_id, domain, legacy_id, legacy_patient_code, reason, detail, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			d.RunID, d.Domain, d.LegacyID, d.LegacyPatientCode, string(d.Reason), d.Detail, time.Now(),
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to insert drop record: %w", err)
		}
	}
	return nil
}

func (r *importRunRepository) DropsByReason(ctx context.Context, runID uuid.UUID) (map[models.DropReason]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT reason, COUNT(*)
		FROM import_drops
		WHERE run_id = $1
		GROUP BY reason`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate drops: %w", err)
	}
	defer rows.Close()

	agg := make(map[models.DropReason]int)
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("failed to scan drop aggregate: %w", err)
		}
		agg[models.DropReason(reason)] = count
	}
	return agg, rows.Err()
}

var _ ImportRunRepository = (*importRunRepository)(nil)
