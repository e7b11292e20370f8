//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/testhelpers"
)

func TestMappingRepository_CreateAndGet(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()

	patientID := uuid.MustParse(testhelpers.SeedPatient(t, testDB.DB, 4711, "Jones"))
	repo := NewMappingRepository(testDB.DB)

	note := "confirmed by reception"
	m := &models.PatientMapping{
		LegacyPatientCode: 4711,
		PatientID:         patientID,
		Origin:            models.MappingOriginManual,
		Note:              &note,
	}
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected id to be set")
	}

	got, err := repo.GetByLegacyCode(ctx, 4711)
	if err != nil {
		t.Fatalf("GetByLegacyCode: %v", err)
	}
	if got.PatientID != patientID {
		t.Errorf("PatientID = %s, want %s", got.PatientID, patientID)
	}
	if got.Origin != models.MappingOriginManual {
		t.Errorf("Origin = %s, want manual", got.Origin)
	}
	if got.Note == nil || *got.Note != note {
		t.Errorf("Note = %v, want %q", got.Note, note)
	}
}

func TestMappingRepository_CreateConflict(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()

	patientID := uuid.MustParse(testhelpers.SeedPatient(t, testDB.DB, 4711, "Jones"))
	otherID := uuid.MustParse(testhelpers.SeedPatient(t, testDB.DB, 4712, "Smith"))
	repo := NewMappingRepository(testDB.DB)

	first := &models.PatientMapping{LegacyPatientCode: 4711, PatientID: patientID, Origin: models.MappingOriginDeterministic}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	second := &models.PatientMapping{LegacyPatientCode: 4711, PatientID: otherID, Origin: models.MappingOriginManual}
	if err := repo.Create(ctx, second); !errors.Is(err, apperrors.ErrMappingExists) {
		t.Errorf("expected ErrMappingExists, got %v", err)
	}

	// The original mapping must be untouched.
	got, err := repo.GetByLegacyCode(ctx, 4711)
	if err != nil {
		t.Fatalf("GetByLegacyCode: %v", err)
	}
	if got.PatientID != patientID {
		t.Errorf("conflict overwrote mapping: got %s", got.PatientID)
	}
}

func TestMappingRepository_CreateUnknownPatient(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)

	repo := NewMappingRepository(testDB.DB)
	m := &models.PatientMapping{LegacyPatientCode: 4711, PatientID: uuid.New(), Origin: models.MappingOriginManual}
	if err := repo.Create(context.Background(), m); !errors.Is(err, apperrors.ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestMappingRepository_Delete(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()

	patientID := uuid.MustParse(testhelpers.SeedPatient(t, testDB.DB, 4711, "Jones"))
	repo := NewMappingRepository(testDB.DB)

	m := &models.PatientMapping{LegacyPatientCode: 4711, PatientID: patientID, Origin: models.MappingOriginManual}
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Delete(ctx, 4711); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByLegacyCode(ctx, 4711); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, 4711); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestMappingRepository_UnmappedCodes(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()

	patientID := uuid.MustParse(testhelpers.SeedPatient(t, testDB.DB, 4711, "Jones"))
	mappings := NewMappingRepository(testDB.DB)
	restoratives := NewRestorativeRepository(testDB.DB)

	// Two pending rows for 999999, one for 888888, and a mapped row for
	// 4711 that must not appear.
	seed := []*models.RestorativeTreatment{
		{LegacyID: 1, LegacyPatientCode: 999999, TreatmentDate: models.NewCalendarDate(2020, 1, 10), FeePence: 100},
		{LegacyID: 2, LegacyPatientCode: 999999, TreatmentDate: models.NewCalendarDate(2020, 2, 10), FeePence: 200},
		{LegacyID: 3, LegacyPatientCode: 888888, TreatmentDate: models.NewCalendarDate(2020, 3, 10), FeePence: 300},
		{LegacyID: 4, LegacyPatientCode: 4711, TreatmentDate: models.NewCalendarDate(2020, 4, 10), FeePence: 400},
	}

	tx, err := testDB.DB.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, rec := range seed {
		if err := restoratives.Create(ctx, tx, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mappings.Create(ctx, &models.PatientMapping{
		LegacyPatientCode: 4711, PatientID: patientID, Origin: models.MappingOriginManual,
	}); err != nil {
		t.Fatalf("Create mapping: %v", err)
	}

	codes, err := mappings.UnmappedCodes(ctx)
	if err != nil {
		t.Fatalf("UnmappedCodes: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 unmapped codes, got %d: %+v", len(codes), codes)
	}
	if codes[0].LegacyPatientCode != 888888 || codes[0].PendingRecords != 1 {
		t.Errorf("codes[0] = %+v, want 888888 with 1 pending", codes[0])
	}
	if codes[1].LegacyPatientCode != 999999 || codes[1].PendingRecords != 2 {
		t.Errorf("codes[1] = %+v, want 999999 with 2 pending", codes[1])
	}
}

// Records dropped as unmapped never reach the imported tables, so the
// worklist must surface them from the latest run's drop records. Drops from
// superseded runs and drops for codes that have since been mapped stay out.
func TestMappingRepository_UnmappedCodesIncludesDrops(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()

	patientID := uuid.MustParse(testhelpers.SeedPatient(t, testDB.DB, 4711, "Jones"))
	mappings := NewMappingRepository(testDB.DB)
	restoratives := NewRestorativeRepository(testDB.DB)
	runs := NewImportRunRepository(testDB.DB)

	older := &models.ImportRun{Domain: "restorative_treatments", Mode: models.ModeDryRun}
	if err := runs.Create(ctx, older); err != nil {
		t.Fatalf("Create older run: %v", err)
	}
	if _, err := testDB.DB.Exec(ctx,
		"UPDATE import_runs SET started_at = started_at - interval '1 hour' WHERE id = $1",
		older.ID); err != nil {
		t.Fatalf("backdate older run: %v", err)
	}
	latest := &models.ImportRun{Domain: "restorative_treatments", Mode: models.ModeDryRun}
	if err := runs.Create(ctx, latest); err != nil {
		t.Fatalf("Create latest run: %v", err)
	}

	drops := []models.DropRecord{
		// Superseded run: must not surface.
		{RunID: older.ID, Domain: older.Domain, LegacyID: 10, LegacyPatientCode: 777777, Reason: models.DropUnmappedPatient},
		// Latest run: two pending drops for 999999, one for a code that
		// has a mapping by now.
		{RunID: latest.ID, Domain: latest.Domain, LegacyID: 11, LegacyPatientCode: 999999, Reason: models.DropUnmappedPatient},
		{RunID: latest.ID, Domain: latest.Domain, LegacyID: 12, LegacyPatientCode: 999999, Reason: models.DropUnmappedPatient},
		{RunID: latest.ID, Domain: latest.Domain, LegacyID: 13, LegacyPatientCode: 4711, Reason: models.DropUnmappedPatient},
		// Non-mapping drop reasons never count as pending.
		{RunID: latest.ID, Domain: latest.Domain, LegacyID: 14, LegacyPatientCode: 666666, Reason: models.DropInvalidDate},
	}
	if err := runs.AddDrops(ctx, drops); err != nil {
		t.Fatalf("AddDrops: %v", err)
	}

	// One imported-but-unlinked row for 999999 adds to the same bucket.
	tx, err := testDB.DB.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := &models.RestorativeTreatment{
		LegacyID: 20, LegacyPatientCode: 999999,
		TreatmentDate: models.NewCalendarDate(2020, 5, 10), FeePence: 500,
	}
	if err := restoratives.Create(ctx, tx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mappings.Create(ctx, &models.PatientMapping{
		LegacyPatientCode: 4711, PatientID: patientID, Origin: models.MappingOriginManual,
	}); err != nil {
		t.Fatalf("Create mapping: %v", err)
	}

	codes, err := mappings.UnmappedCodes(ctx)
	if err != nil {
		t.Fatalf("UnmappedCodes: %v", err)
	}
	if len(codes) != 1 {
		t.Fatalf("expected 1 unmapped code, got %d: %+v", len(codes), codes)
	}
	if codes[0].LegacyPatientCode != 999999 || codes[0].PendingRecords != 3 {
		t.Errorf("codes[0] = %+v, want 999999 with 3 pending", codes[0])
	}
}
