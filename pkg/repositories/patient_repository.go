package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/database"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// PatientRepository reads the destination patient registry. The engine
// never creates or modifies patients; it only matches against them.
type PatientRepository interface {
	// GetByID retrieves a patient. Returns apperrors.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)

	// GetByExternalNumber retrieves a patient by its stable natural key.
	// Returns apperrors.ErrNotFound if absent.
	GetByExternalNumber(ctx context.Context, externalNumber int64) (*models.Patient, error)
}

type patientRepository struct {
	db *database.DB
}

// NewPatientRepository creates a patient repository over the destination.
func NewPatientRepository(db *database.DB) PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	query := `
		SELECT id, external_number, family_name, given_name
		FROM patients
		WHERE id = $1`

	var p models.Patient
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.ExternalNumber, &p.FamilyName, &p.GivenName)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &p, nil
}

func (r *patientRepository) GetByExternalNumber(ctx context.Context, externalNumber int64) (*models.Patient, error) {
	query := `
		SELECT id, external_number, family_name, given_name
		FROM patients
		WHERE external_number = $1`

	var p models.Patient
	err := r.db.QueryRow(ctx, query, externalNumber).Scan(&p.ID, &p.ExternalNumber, &p.FamilyName, &p.GivenName)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient by external number: %w", err)
	}
	return &p, nil
}

var _ PatientRepository = (*patientRepository)(nil)
