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

// DeterministicMatcher is the pluggable heuristic that maps a legacy
// patient code to a destination patient without human input. Kept behind
// an interface so the rule can be tested and swapped in isolation;
// whatever it returns, a manual mapping always wins.
type DeterministicMatcher interface {
	// Match returns the destination patient id for a legacy code, or
	// found=false when the heuristic has no answer.
	Match(ctx context.Context, legacyCode int64) (patientID uuid.UUID, found bool, err error)
}

// ExternalNumberMatcher matches a legacy patient code against the
// destination registry's external patient number, the one stable natural
// key both systems share.
type ExternalNumberMatcher struct {
	patients repositories.PatientRepository
}

// NewExternalNumberMatcher creates the default deterministic matcher.
func NewExternalNumberMatcher(patients repositories.PatientRepository) *ExternalNumberMatcher {
	return &ExternalNumberMatcher{patients: patients}
}

// Match implements DeterministicMatcher by exact external-number lookup.
func (m *ExternalNumberMatcher) Match(ctx context.Context, legacyCode int64) (uuid.UUID, bool, error) {
	patient, err := m.patients.GetByExternalNumber(ctx, legacyCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return patient.ID, true, nil
}

// Resolver maps legacy patient codes to destination patient ids.
// Resolution order: existing mapping (manual or deterministic), then the
// deterministic heuristic, then unmapped. Unmapped is an answer, not an
// error - the caller classifies the record, the run continues.
type Resolver struct {
	mappings repositories.MappingRepository
	matcher  DeterministicMatcher
	// persist controls whether heuristic matches are recorded as
	// deterministic mappings. Off in dry_run so a dry run writes nothing.
	persist bool
	cache   map[int64]*uuid.UUID
	logger  *zap.Logger
}

// NewResolver creates a resolver. persist should be true only for apply
// runs.
func NewResolver(mappings repositories.MappingRepository, matcher DeterministicMatcher, persist bool, logger *zap.Logger) *Resolver {
	return &Resolver{
		mappings: mappings,
		matcher:  matcher,
		persist:  persist,
		cache:    make(map[int64]*uuid.UUID),
		logger:   logger,
	}
}

// Resolve returns the destination patient id for a legacy code, or nil if
// the code is unmapped. Each code resolves at most once per run.
func (r *Resolver) Resolve(ctx context.Context, legacyCode int64) (*uuid.UUID, error) {
	if cached, ok := r.cache[legacyCode]; ok {
		return cached, nil
	}

	resolved, err := r.resolve(ctx, legacyCode)
	if err != nil {
		return nil, err
	}
	r.cache[legacyCode] = resolved
	return resolved, nil
}

func (r *Resolver) resolve(ctx context.Context, legacyCode int64) (*uuid.UUID, error) {
	mapping, err := r.mappings.GetByLegacyCode(ctx, legacyCode)
	if err == nil {
		id := mapping.PatientID
		return &id, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up mapping for code %d: %w", legacyCode, err)
	}

	patientID, found, err := r.matcher.Match(ctx, legacyCode)
	if err != nil {
		return nil, fmt.Errorf("deterministic match failed for code %d: %w", legacyCode, err)
	}
	if !found {
		return nil, nil
	}

	if r.persist {
		m := &models.PatientMapping{
			LegacyPatientCode: legacyCode,
			PatientID:         patientID,
			Origin:            models.MappingOriginDeterministic,
		}
		if err := r.mappings.Create(ctx, m); err != nil {
			// A concurrent or earlier run may have recorded the same
			// mapping; the existing one wins.
			if !errors.Is(err, apperrors.ErrMappingExists) {
				return nil, fmt.Errorf("failed to record deterministic mapping for code %d: %w", legacyCode, err)
			}
		} else {
			r.logger.Info("Recorded deterministic patient mapping",
				zap.Int64("legacy_patient_code", legacyCode),
				zap.String("patient_id", patientID.String()))
		}
	}

	return &patientID, nil
}
