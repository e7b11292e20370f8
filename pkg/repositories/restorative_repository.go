package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dentaldesk/legacymigrate/pkg/database"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// RestorativeRepository defines destination access for restorative
// treatments. Write methods take an explicit pgx.Tx so a batch commits
// together or not at all.
type RestorativeRepository interface {
	// GetByLegacyIDs fetches existing rows keyed by legacy id.
	GetByLegacyIDs(ctx context.Context, legacyIDs []int64) (map[int64]*models.RestorativeTreatment, error)

	// Create inserts a new row inside the batch transaction.
	Create(ctx context.Context, tx pgx.Tx, t *models.RestorativeTreatment) error

	// Update rewrites the business fields of an existing row.
	Update(ctx context.Context, tx pgx.Tx, t *models.RestorativeTreatment) error

	// ForPatientInWindow lists rows for one legacy patient code inside a
	// date window, ordered by legacy id. Used by the parity verifier.
	ForPatientInWindow(ctx context.Context, legacyCode int64, from, to *models.CalendarDate) ([]*models.RestorativeTreatment, error)

	// CountBackfillable counts rows whose patient id is null but whose
	// legacy code now has a mapping.
	CountBackfillable(ctx context.Context) (int64, error)

	// BackfillPatientIDs resolves patient ids on up to limit rows from
	// existing mappings. Returns the number of rows changed. Rows already
	// resolved are never touched, so repeated runs are no-ops.
	BackfillPatientIDs(ctx context.Context, limit int) (int64, error)
}

type restorativeRepository struct {
	db *database.DB
}

// NewRestorativeRepository creates the repository over the destination.
func NewRestorativeRepository(db *database.DB) RestorativeRepository {
	return &restorativeRepository{db: db}
}

const restorativeColumns = `id, legacy_id, legacy_patient_code, patient_id,
	treatment_date, completed_date, tooth, surfaces, description, fee_pence,
	created_at, updated_at`

func (r *restorativeRepository) GetByLegacyIDs(ctx context.Context, legacyIDs []int64) (map[int64]*models.RestorativeTreatment, error) {
	if len(legacyIDs) == 0 {
		return map[int64]*models.RestorativeTreatment{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM restorative_treatments WHERE legacy_id = ANY($1)`, restorativeColumns)

	rows, err := r.db.Query(ctx, query, legacyIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch restorative treatments: %w", err)
	}
	defer rows.Close()

	existing := make(map[int64]*models.RestorativeTreatment, len(legacyIDs))
	for rows.Next() {
		t, err := scanRestorative(rows)
		if err != nil {
			return nil, err
		}
		existing[t.LegacyID] = t
	}
	return existing, rows.Err()
}

func (r *restorativeRepository) Create(ctx context.Context, tx pgx.Tx, t *models.RestorativeTreatment) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO restorative_treatments
			(legacy_id, legacy_patient_code, patient_id, treatment_date, completed_date,
			 tooth, surfaces, description, fee_pence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		t.LegacyID,
		t.LegacyPatientCode,
		t.PatientID,
		t.TreatmentDate,
		calendarDatePtr(t.CompletedDate),
		t.Tooth,
		t.Surfaces,
		t.Description,
		t.FeePence,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create restorative treatment: %w", err)
	}
	return nil
}

func (r *restorativeRepository) Update(ctx context.Context, tx pgx.Tx, t *models.RestorativeTreatment) error {
	t.UpdatedAt = time.Now()

	query := `
		UPDATE restorative_treatments
		SET legacy_patient_code = $2, patient_id = $3, treatment_date = $4,
			completed_date = $5, tooth = $6, surfaces = $7, description = $8,
			fee_pence = $9, updated_at = $10
		WHERE legacy_id = $1`

	result, err := tx.Exec(ctx, query,
		t.LegacyID,
		t.LegacyPatientCode,
		t.PatientID,
		t.TreatmentDate,
		calendarDatePtr(t.CompletedDate),
		t.Tooth,
		t.Surfaces,
		t.Description,
		t.FeePence,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update restorative treatment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("restorative treatment legacy_id=%d not found", t.LegacyID)
	}
	return nil
}

func (r *restorativeRepository) ForPatientInWindow(ctx context.Context, legacyCode int64, from, to *models.CalendarDate) ([]*models.RestorativeTreatment, error) {
	query := fmt.Sprintf(`SELECT %s FROM restorative_treatments WHERE legacy_patient_code = $1`, restorativeColumns)
	args := []any{legacyCode}

	if from != nil {
		args = append(args, from.Time())
		query += fmt.Sprintf(" AND treatment_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.Time())
		query += fmt.Sprintf(" AND treatment_date <= $%d", len(args))
	}
	query += " ORDER BY legacy_id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list restorative treatments: %w", err)
	}
	defer rows.Close()

	var out []*models.RestorativeTreatment
	for rows.Next() {
		t, err := scanRestorative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *restorativeRepository) CountBackfillable(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM restorative_treatments t
		JOIN legacy_patient_mappings m ON m.legacy_patient_code = t.legacy_patient_code
		WHERE t.patient_id IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count backfillable rows: %w", err)
	}
	return count, nil
}

func (r *restorativeRepository) BackfillPatientIDs(ctx context.Context, limit int) (int64, error) {
	query := `
		UPDATE restorative_treatments t
		SET patient_id = m.patient_id, updated_at = now()
		FROM legacy_patient_mappings m
		WHERE m.legacy_patient_code = t.legacy_patient_code
		  AND t.patient_id IS NULL
		  AND t.id IN (
			SELECT t2.id
			FROM restorative_treatments t2
			JOIN legacy_patient_mappings m2 ON m2.legacy_patient_code = t2.legacy_patient_code
			WHERE t2.patient_id IS NULL
			ORDER BY t2.legacy_id
			LIMIT $1
		  )`

	result, err := r.db.Exec(ctx, query, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill patient ids: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanRestorative(rows pgx.Rows) (*models.RestorativeTreatment, error) {
	var t models.RestorativeTreatment
	var completed *time.Time
	var treatmentDate time.Time
	if err := rows.Scan(
		&t.ID,
		&t.LegacyID,
		&t.LegacyPatientCode,
		&t.PatientID,
		&treatmentDate,
		&completed,
		&t.Tooth,
		&t.Surfaces,
		&t.Description,
		&t.FeePence,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan restorative treatment: %w", err)
	}
	t.TreatmentDate = models.DateOf(treatmentDate)
	if completed != nil {
		d := models.DateOf(*completed)
		t.CompletedDate = &d
	}
	return &t, nil
}

// calendarDatePtr converts an optional CalendarDate into a bindable value.
func calendarDatePtr(d *models.CalendarDate) any {
	if d == nil {
		return nil
	}
	return d.Time()
}

var _ RestorativeRepository = (*restorativeRepository)(nil)
