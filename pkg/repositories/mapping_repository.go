package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/database"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// MappingRepository defines data access for patient mappings.
type MappingRepository interface {
	// Create inserts a mapping. Returns apperrors.ErrMappingExists if the
	// legacy code is already mapped - the original mapping is untouched.
	Create(ctx context.Context, m *models.PatientMapping) error

	// GetByLegacyCode retrieves the mapping for a legacy patient code.
	// Returns apperrors.ErrNotFound if no mapping exists.
	GetByLegacyCode(ctx context.Context, legacyCode int64) (*models.PatientMapping, error)

	// List retrieves all mappings ordered by legacy code.
	List(ctx context.Context) ([]*models.PatientMapping, error)

	// Delete removes the mapping for a legacy code. Explicit admin action
	// only; the next run re-resolves the code from scratch.
	Delete(ctx context.Context, legacyCode int64) error

	// UnmappedCodes lists legacy patient codes with records still waiting on
	// a mapping: imported rows whose patient id is null plus records dropped
	// as unmapped in the latest run, with pending counts per code.
	UnmappedCodes(ctx context.Context) ([]models.UnmappedCode, error)
}

type mappingRepository struct {
	db *database.DB
}

// NewMappingRepository creates a mapping repository over the destination.
func NewMappingRepository(db *database.DB) MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) Create(ctx context.Context, m *models.PatientMapping) error {
	m.CreatedAt = time.Now()

	query := `
		INSERT INTO legacy_patient_mappings (legacy_patient_code, patient_id, origin, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		m.LegacyPatientCode,
		m.PatientID,
		m.Origin,
		m.Note,
		m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrMappingExists
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperrors.ErrPatientNotFound
		}
		return fmt.Errorf("failed to create mapping: %w", err)
	}

	return nil
}

func (r *mappingRepository) GetByLegacyCode(ctx context.Context, legacyCode int64) (*models.PatientMapping, error) {
	query := `
		SELECT id, legacy_patient_code, patient_id, origin, note, created_at
		FROM legacy_patient_mappings
		WHERE legacy_patient_code = $1`

	var m models.PatientMapping
	err := r.db.QueryRow(ctx, query, legacyCode).Scan(
		&m.ID,
		&m.LegacyPatientCode,
		&m.PatientID,
		&m.Origin,
		&m.Note,
		&m.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	return &m, nil
}

func (r *mappingRepository) List(ctx context.Context) ([]*models.PatientMapping, error) {
	query := `
		SELECT id, legacy_patient_code, patient_id, origin, note, created_at
		FROM legacy_patient_mappings
		ORDER BY legacy_patient_code`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.PatientMapping
	for rows.Next() {
		var m models.PatientMapping
		if err := rows.Scan(&m.ID, &m.LegacyPatientCode, &m.PatientID, &m.Origin, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

func (r *mappingRepository) Delete(ctx context.Context, legacyCode int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM legacy_patient_mappings WHERE legacy_patient_code = $1`, legacyCode)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *mappingRepository) UnmappedCodes(ctx context.Context) ([]models.UnmappedCode, error) {
	// Pending records live in two places: imported rows that still lack a
	// patient id, and records dropped as unmapped_patient (those never
	// reached the imported tables). Drops are read from the most recent run
	// per domain so a code is not counted once per historical run. A code
	// counts as unmapped only while no mapping row exists for it.
	query := `
		SELECT t.legacy_patient_code, COUNT(*) AS pending
		FROM (
			SELECT legacy_patient_code FROM restorative_treatments WHERE patient_id IS NULL
			UNION ALL
			SELECT legacy_patient_code FROM treatment_plans WHERE patient_id IS NULL
			UNION ALL
			SELECT d.legacy_patient_code
			FROM import_drops d
			WHERE d.reason = 'unmapped_patient'
			AND d.run_id IN (
				SELECT DISTINCT ON (domain) id
				FROM import_runs
				ORDER BY domain, started_at DESC
			)
		) t
		WHERE NOT EXISTS (
			SELECT 1 FROM legacy_patient_mappings m
			WHERE m.legacy_patient_code = t.legacy_patient_code
		)
		GROUP BY t.legacy_patient_code
		ORDER BY t.legacy_patient_code`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmapped codes: %w", err)
	}
	defer rows.Close()

	var codes []models.UnmappedCode
	for rows.Next() {
		var c models.UnmappedCode
		if err := rows.Scan(&c.LegacyPatientCode, &c.PendingRecords); err != nil {
			return nil, fmt.Errorf("failed to scan unmapped code: %w", err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

var _ MappingRepository = (*mappingRepository)(nil)
