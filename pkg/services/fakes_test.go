package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// In-memory stand-ins for the destination repositories. Only the behavior
// the services under test exercise is implemented; writes that would need
// a live transaction record their inputs instead.

type fakeMappingRepo struct {
	byCode  map[int64]*models.PatientMapping
	created []*models.PatientMapping
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{byCode: make(map[int64]*models.PatientMapping)}
}

func (f *fakeMappingRepo) Create(ctx context.Context, m *models.PatientMapping) error {
	if _, exists := f.byCode[m.LegacyPatientCode]; exists {
		return apperrors.ErrMappingExists
	}
	m.ID = uuid.New()
	f.byCode[m.LegacyPatientCode] = m
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMappingRepo) GetByLegacyCode(ctx context.Context, legacyCode int64) (*models.PatientMapping, error) {
	m, ok := f.byCode[legacyCode]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return m, nil
}

func (f *fakeMappingRepo) List(ctx context.Context) ([]*models.PatientMapping, error) {
	out := make([]*models.PatientMapping, 0, len(f.byCode))
	for _, m := range f.byCode {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMappingRepo) Delete(ctx context.Context, legacyCode int64) error {
	if _, ok := f.byCode[legacyCode]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.byCode, legacyCode)
	return nil
}

func (f *fakeMappingRepo) UnmappedCodes(ctx context.Context) ([]models.UnmappedCode, error) {
	return nil, nil
}

type fakePatientRepo struct {
	byID       map[uuid.UUID]*models.Patient
	byExternal map[int64]*models.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{
		byID:       make(map[uuid.UUID]*models.Patient),
		byExternal: make(map[int64]*models.Patient),
	}
}

func (f *fakePatientRepo) add(externalNumber int64) *models.Patient {
	p := &models.Patient{ID: uuid.New(), ExternalNumber: &externalNumber}
	f.byID[p.ID] = p
	f.byExternal[externalNumber] = p
	return p
}

func (f *fakePatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (f *fakePatientRepo) GetByExternalNumber(ctx context.Context, externalNumber int64) (*models.Patient, error) {
	p, ok := f.byExternal[externalNumber]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

type fakeRestorativeRepo struct {
	existing map[int64]*models.RestorativeTreatment

	createdCalls  []*models.RestorativeTreatment
	updatedCalls  []*models.RestorativeTreatment
	backfillable  int64
	backfillCalls []int
}

func newFakeRestorativeRepo() *fakeRestorativeRepo {
	return &fakeRestorativeRepo{existing: make(map[int64]*models.RestorativeTreatment)}
}

func (f *fakeRestorativeRepo) GetByLegacyIDs(ctx context.Context, legacyIDs []int64) (map[int64]*models.RestorativeTreatment, error) {
	out := make(map[int64]*models.RestorativeTreatment)
	for _, id := range legacyIDs {
		if rec, ok := f.existing[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (f *fakeRestorativeRepo) Create(ctx context.Context, tx pgx.Tx, t *models.RestorativeTreatment) error {
	f.createdCalls = append(f.createdCalls, t)
	return nil
}

func (f *fakeRestorativeRepo) Update(ctx context.Context, tx pgx.Tx, t *models.RestorativeTreatment) error {
	f.updatedCalls = append(f.updatedCalls, t)
	return nil
}

func (f *fakeRestorativeRepo) ForPatientInWindow(ctx context.Context, legacyCode int64, from, to *models.CalendarDate) ([]*models.RestorativeTreatment, error) {
	var out []*models.RestorativeTreatment
	for _, rec := range f.existing {
		if rec.LegacyPatientCode == legacyCode {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRestorativeRepo) CountBackfillable(ctx context.Context) (int64, error) {
	return f.backfillable, nil
}

func (f *fakeRestorativeRepo) BackfillPatientIDs(ctx context.Context, limit int) (int64, error) {
	f.backfillCalls = append(f.backfillCalls, limit)
	linked := f.backfillable
	if linked > int64(limit) {
		linked = int64(limit)
	}
	f.backfillable -= linked
	return linked, nil
}

type fakeTreatmentPlanRepo struct {
	existing map[int64]*models.TreatmentPlan

	createdCalls []*models.TreatmentPlan
	updatedCalls []*models.TreatmentPlan
	backfillable int64
}

func newFakeTreatmentPlanRepo() *fakeTreatmentPlanRepo {
	return &fakeTreatmentPlanRepo{existing: make(map[int64]*models.TreatmentPlan)}
}

func (f *fakeTreatmentPlanRepo) GetByLegacyIDs(ctx context.Context, legacyIDs []int64) (map[int64]*models.TreatmentPlan, error) {
	out := make(map[int64]*models.TreatmentPlan)
	for _, id := range legacyIDs {
		if rec, ok := f.existing[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (f *fakeTreatmentPlanRepo) Create(ctx context.Context, tx pgx.Tx, p *models.TreatmentPlan) error {
	f.createdCalls = append(f.createdCalls, p)
	return nil
}

func (f *fakeTreatmentPlanRepo) Update(ctx context.Context, tx pgx.Tx, p *models.TreatmentPlan) error {
	f.updatedCalls = append(f.updatedCalls, p)
	return nil
}

func (f *fakeTreatmentPlanRepo) ForPatientInWindow(ctx context.Context, legacyCode int64, from, to *models.CalendarDate) ([]*models.TreatmentPlan, error) {
	var out []*models.TreatmentPlan
	for _, rec := range f.existing {
		if rec.LegacyPatientCode == legacyCode {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeTreatmentPlanRepo) CountBackfillable(ctx context.Context) (int64, error) {
	return f.backfillable, nil
}

func (f *fakeTreatmentPlanRepo) BackfillPatientIDs(ctx context.Context, limit int) (int64, error) {
	linked := f.backfillable
	if linked > int64(limit) {
		linked = int64(limit)
	}
	f.backfillable -= linked
	return linked, nil
}

// fixedMatcher is a DeterministicMatcher with a static answer table.
type fixedMatcher struct {
	matches map[int64]uuid.UUID
}

func (m *fixedMatcher) Match(ctx context.Context, legacyCode int64) (uuid.UUID, bool, error) {
	id, ok := m.matches[legacyCode]
	return id, ok, nil
}
