package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentaldesk/legacymigrate/pkg/database"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// TreatmentPlanRepository defines destination access for treatment plans.
// Items travel with their plan: an update rewrites the item set inside the
// same transaction.
type TreatmentPlanRepository interface {
	// GetByLegacyIDs fetches existing plans (with items) keyed by legacy id.
	GetByLegacyIDs(ctx context.Context, legacyIDs []int64) (map[int64]*models.TreatmentPlan, error)

	// Create inserts a plan and its items inside the batch transaction.
	Create(ctx context.Context, tx pgx.Tx, p *models.TreatmentPlan) error

	// Update rewrites a plan's business fields and replaces its items.
	Update(ctx context.Context, tx pgx.Tx, p *models.TreatmentPlan) error

	// ForPatientInWindow lists plans for one legacy patient code inside a
	// date window, ordered by legacy id. Used by the parity verifier.
	ForPatientInWindow(ctx context.Context, legacyCode int64, from, to *models.CalendarDate) ([]*models.TreatmentPlan, error)

	// CountBackfillable counts plans whose patient id is null but whose
	// legacy code now has a mapping.
	CountBackfillable(ctx context.Context) (int64, error)

	// BackfillPatientIDs resolves patient ids on up to limit plans.
	BackfillPatientIDs(ctx context.Context, limit int) (int64, error)
}

type treatmentPlanRepository struct {
	db *database.DB
}

// NewTreatmentPlanRepository creates the repository over the destination.
func NewTreatmentPlanRepository(db *database.DB) TreatmentPlanRepository {
	return &treatmentPlanRepository{db: db}
}

func (r *treatmentPlanRepository) GetByLegacyIDs(ctx context.Context, legacyIDs []int64) (map[int64]*models.TreatmentPlan, error) {
	if len(legacyIDs) == 0 {
		return map[int64]*models.TreatmentPlan{}, nil
	}

	query := `
		SELECT id, legacy_id, legacy_patient_code, patient_id, plan_date, title, status, created_at, updated_at
		FROM treatment_plans
		WHERE legacy_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, legacyIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch treatment plans: %w", err)
	}

	plans := make(map[int64]*models.TreatmentPlan, len(legacyIDs))
	byID := make(map[uuid.UUID]*models.TreatmentPlan, len(legacyIDs))
	for rows.Next() {
		p, err := scanTreatmentPlan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		plans[p.LegacyID] = p
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(byID) == 0 {
		return plans, nil
	}

	planIDs := make([]uuid.UUID, 0, len(byID))
	for id := range byID {
		planIDs = append(planIDs, id)
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT id, plan_id, legacy_id, code, description, tooth, fee_pence
		FROM treatment_plan_items
		WHERE plan_id = ANY($1)
		ORDER BY legacy_id`, planIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch plan items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item models.TreatmentPlanItem
		if err := itemRows.Scan(&item.ID, &item.PlanID, &item.LegacyID, &item.Code,
			&item.Description, &item.Tooth, &item.FeePence); err != nil {
			return nil, fmt.Errorf("failed to scan plan item: %w", err)
		}
		if plan, ok := byID[item.PlanID]; ok {
			plan.Items = append(plan.Items, item)
		}
	}
	return plans, itemRows.Err()
}

func (r *treatmentPlanRepository) Create(ctx context.Context, tx pgx.Tx, p *models.TreatmentPlan) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO treatment_plans
			(legacy_id, legacy_patient_code, patient_id, plan_date, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		p.LegacyID,
		p.LegacyPatientCode,
		p.PatientID,
		p.PlanDate,
		p.Title,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create treatment plan: %w", err)
	}

	return r.insertItems(ctx, tx, p)
}

func (r *treatmentPlanRepository) Update(ctx context.Context, tx pgx.Tx, p *models.TreatmentPlan) error {
	p.UpdatedAt = time.Now()

	query := `
		UPDATE treatment_plans
		SET legacy_patient_code = $2, patient_id = $3, plan_date = $4,
			title = $5, status = $6, updated_at = $7
		WHERE legacy_id = $1
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		p.LegacyID,
		p.LegacyPatientCode,
		p.PatientID,
		p.PlanDate,
		p.Title,
		p.Status,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to update treatment plan: %w", err)
	}

	// Replace the item set wholesale; item-level diffing is not worth the
	// bookkeeping when the whole plan updates atomically anyway.
	if _, err := tx.Exec(ctx, `DELETE FROM treatment_plan_items WHERE plan_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to clear plan items: %w", err)
	}
	return r.insertItems(ctx, tx, p)
}

func (r *treatmentPlanRepository) insertItems(ctx context.Context, tx pgx.Tx, p *models.TreatmentPlan) error {
	for i := range p.Items {
		item := &p.Items[i]
		item.PlanID = p.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO treatment_plan_items (plan_id, legacy_id, code, description, tooth, fee_pence)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.PlanID, item.LegacyID, item.Code, item.Description, item.Tooth, item.FeePence,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert plan item: %w", err)
		}
	}
	return nil
}

func (r *treatmentPlanRepository) ForPatientInWindow(ctx context.Context, legacyCode int64, from, to *models.CalendarDate) ([]*models.TreatmentPlan, error) {
	query := `
		SELECT id, legacy_id, legacy_patient_code, patient_id, plan_date, title, status, created_at, updated_at
		FROM treatment_plans
		WHERE legacy_patient_code = $1`
	args := []any{legacyCode}

	if from != nil {
		args = append(args, from.Time())
		query += fmt.Sprintf(" AND plan_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.Time())
		query += fmt.Sprintf(" AND plan_date <= $%d", len(args))
	}
	query += " ORDER BY legacy_id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list treatment plans: %w", err)
	}

	var out []*models.TreatmentPlan
	legacyIDs := make([]int64, 0)
	for rows.Next() {
		p, err := scanTreatmentPlan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
		legacyIDs = append(legacyIDs, p.LegacyID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}

	// Reuse the batched item fetch to attach items.
	withItems, err := r.GetByLegacyIDs(ctx, legacyIDs)
	if err != nil {
		return nil, err
	}
	for _, p := range out {
		if full, ok := withItems[p.LegacyID]; ok {
			p.Items = full.Items
		}
	}
	return out, nil
}

func (r *treatmentPlanRepository) CountBackfillable(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM treatment_plans p
		JOIN legacy_patient_mappings m ON m.legacy_patient_code = p.legacy_patient_code
		WHERE p.patient_id IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count backfillable plans: %w", err)
	}
	return count, nil
}

func (r *treatmentPlanRepository) BackfillPatientIDs(ctx context.Context, limit int) (int64, error) {
	query := `
		UPDATE treatment_plans p
		SET patient_id = m.patient_id, updated_at = now()
		FROM legacy_patient_mappings m
		WHERE m.legacy_patient_code = p.legacy_patient_code
		  AND p.patient_id IS NULL
		  AND p.id IN (
			SELECT p2.id
			FROM treatment_plans p2
			JOIN legacy_patient_mappings m2 ON m2.legacy_patient_code = p2.legacy_patient_code
			WHERE p2.patient_id IS NULL
			ORDER BY p2.legacy_id
			LIMIT $1
		  )`

	result, err := r.db.Exec(ctx, query, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill plan patient ids: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanTreatmentPlan(rows pgx.Rows) (*models.TreatmentPlan, error) {
	var p models.TreatmentPlan
	var planDate time.Time
	if err := rows.Scan(
		&p.ID,
		&p.LegacyID,
		&p.LegacyPatientCode,
		&p.PatientID,
		&planDate,
		&p.Title,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan treatment plan: %w", err)
	}
	p.PlanDate = models.DateOf(planDate)
	return &p, nil
}

var _ TreatmentPlanRepository = (*treatmentPlanRepository)(nil)
