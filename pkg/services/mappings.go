package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/repositories"
)

// MappingAdmin is the operator-facing surface for manual patient mappings.
// Manual mappings are the override channel for codes the deterministic
// matcher cannot place; once present they win over any heuristic.
type MappingAdmin struct {
	mappings repositories.MappingRepository
	patients repositories.PatientRepository
	logger   *zap.Logger
}

// NewMappingAdmin creates the mapping admin service.
func NewMappingAdmin(mappings repositories.MappingRepository, patients repositories.PatientRepository, logger *zap.Logger) *MappingAdmin {
	return &MappingAdmin{
		mappings: mappings,
		patients: patients,
		logger:   logger,
	}
}

// CreateManual records a manual mapping from a legacy patient code to a
// destination patient. The patient must exist and the code must not be
// mapped yet; correcting a mapping is an explicit delete then create.
func (s *MappingAdmin) CreateManual(ctx context.Context, legacyCode int64, patientID uuid.UUID, note string) (*models.PatientMapping, error) {
	if legacyCode <= 0 {
		return nil, fmt.Errorf("invalid legacy patient code %d", legacyCode)
	}

	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrPatientNotFound, patientID)
		}
		return nil, err
	}

	m := &models.PatientMapping{
		LegacyPatientCode: legacyCode,
		PatientID:         patientID,
		Origin:            models.MappingOriginManual,
	}
	if note != "" {
		m.Note = &note
	}

	if err := s.mappings.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Created manual patient mapping",
		zap.Int64("legacy_patient_code", legacyCode),
		zap.String("patient_id", patientID.String()))

	return m, nil
}

// List returns all mappings ordered by legacy patient code.
func (s *MappingAdmin) List(ctx context.Context) ([]*models.PatientMapping, error) {
	return s.mappings.List(ctx)
}

// Delete removes the mapping for a legacy patient code. Imported rows
// already linked through it keep their patient id; only future resolution
// is affected.
func (s *MappingAdmin) Delete(ctx context.Context, legacyCode int64) error {
	if err := s.mappings.Delete(ctx, legacyCode); err != nil {
		return err
	}
	s.logger.Info("Deleted patient mapping", zap.Int64("legacy_patient_code", legacyCode))
	return nil
}

// Unmapped lists legacy patient codes with records waiting on a mapping,
// whether those records were imported with a null patient id or dropped as
// unmapped, with the number of pending records per code. This is the
// operator worklist for manual mapping.
func (s *MappingAdmin) Unmapped(ctx context.Context) ([]models.UnmappedCode, error) {
	return s.mappings.UnmappedCodes(ctx)
}
