package legacy

import (
	"errors"
	"testing"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
)

func TestGuardStatement_AllowsReads(t *testing.T) {
	statements := []string{
		"SELECT 1",
		"select TreatmentID from [dbo].[RestorativeTreatment]",
		"  SELECT PatientCode FROM [dbo].[TreatmentPlan]  ",
		"SELECT 1;",
		"WITH recent AS (SELECT 1 AS n) SELECT n FROM recent",
		"-- cohort probe\nSELECT DISTINCT PatientCode FROM [dbo].[TreatmentPlan]",
		"/* header */ SELECT 1",
		"SELECT Description FROM [dbo].[RestorativeTreatment] WHERE Description = 'semi;colon'",
	}

	for _, stmt := range statements {
		if err := GuardStatement(stmt); err != nil {
			t.Errorf("GuardStatement(%q) = %v, want nil", stmt, err)
		}
	}
}

func TestGuardStatement_RejectsWrites(t *testing.T) {
	statements := []string{
		"",
		"   ",
		"INSERT INTO [dbo].[RestorativeTreatment] VALUES (1)",
		"UPDATE [dbo].[TreatmentPlan] SET Status = 'done'",
		"DELETE FROM [dbo].[TreatmentPlanItem]",
		"DROP TABLE [dbo].[RestorativeTreatment]",
		"TRUNCATE TABLE [dbo].[TreatmentPlan]",
		"EXEC sp_who",
		"SELECT 1; DELETE FROM [dbo].[TreatmentPlan]",
		"SELECT 1;;",
		"-- comment only",
		"/* unterminated comment SELECT 1",
	}

	for _, stmt := range statements {
		err := GuardStatement(stmt)
		if err == nil {
			t.Errorf("GuardStatement(%q) = nil, want error", stmt)
			continue
		}
		if !errors.Is(err, apperrors.ErrReadOnlyViolation) {
			t.Errorf("GuardStatement(%q) = %v, want ErrReadOnlyViolation", stmt, err)
		}
	}
}

func TestGuardValue(t *testing.T) {
	// Non-strings cannot carry injection.
	if err := GuardValue("p1", int64(12345)); err != nil {
		t.Errorf("GuardValue(int64) = %v, want nil", err)
	}
	if err := GuardValue("p1", nil); err != nil {
		t.Errorf("GuardValue(nil) = %v, want nil", err)
	}

	// Ordinary operator input passes.
	if err := GuardValue("p1", "Jones"); err != nil {
		t.Errorf("GuardValue(plain string) = %v, want nil", err)
	}

	// Classic injection payloads do not.
	payloads := []string{
		"1' OR '1'='1",
		"x'; DROP TABLE patients--",
		"1 UNION SELECT password FROM users",
	}
	for _, payload := range payloads {
		err := GuardValue("p1", payload)
		if err == nil {
			t.Errorf("GuardValue(%q) = nil, want error", payload)
			continue
		}
		if !errors.Is(err, apperrors.ErrReadOnlyViolation) {
			t.Errorf("GuardValue(%q) = %v, want ErrReadOnlyViolation", payload, err)
		}
	}
}
