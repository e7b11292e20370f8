package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaldesk/legacymigrate/pkg/models"
)

func TestJudgePatient_NoDataIsWarning(t *testing.T) {
	p := judgePatient(999999, nil, nil, 0)

	assert.Equal(t, models.ParityWarning, p.Status)
	assert.True(t, p.NoData)
	assert.Empty(t, p.SourceFingerprint)
}

// Zero source rows is a warning even when the destination holds rows; the
// extra rows are reported in the detail rather than flipping the verdict.
func TestJudgePatient_EmptySourceWithDestinationRowsIsWarning(t *testing.T) {
	dst := []string{"1|4711|2019-03-14||UL6|MOD|x|8650"}
	p := judgePatient(4711, nil, dst, 0)

	assert.Equal(t, models.ParityWarning, p.Status)
	assert.True(t, p.NoData)
	assert.Contains(t, p.Detail, "destination has 1")
	assert.Equal(t, 1, p.DestinationCount)
}

// All source rows unnormalizable leaves an empty source side; the skipped
// count must still reach the detail.
func TestJudgePatient_EmptySourceSkippedNoted(t *testing.T) {
	p := judgePatient(4711, nil, nil, 3)

	assert.Equal(t, models.ParityWarning, p.Status)
	assert.True(t, p.NoData)
	assert.Contains(t, p.Detail, "3 source record(s) skipped")
}

func TestJudgePatient_CountMismatchFails(t *testing.T) {
	p := judgePatient(4711, []string{"1|4711|2019-03-14||UL6|MOD|x|8650"}, nil, 0)

	assert.Equal(t, models.ParityFail, p.Status)
	assert.False(t, p.NoData)
	assert.Contains(t, p.Detail, "count mismatch")
}

func TestJudgePatient_ContentMismatchFails(t *testing.T) {
	src := []string{"1|4711|2019-03-14||UL6|MOD|x|8650"}
	dst := []string{"1|4711|2019-03-14||UL6|MOD|x|9000"}

	p := judgePatient(4711, src, dst, 0)
	assert.Equal(t, models.ParityFail, p.Status)
	assert.Contains(t, p.Detail, "fingerprint")
}

func TestJudgePatient_MatchPasses(t *testing.T) {
	lines := []string{
		"1|4711|2019-03-14||UL6|MOD|x|8650",
		"2|4711|2019-04-02||LR7|O|y|4500",
	}
	p := judgePatient(4711, lines, lines, 0)

	assert.Equal(t, models.ParityPass, p.Status)
	assert.Equal(t, p.SourceFingerprint, p.DestFingerprint)
}

func TestJudgePatient_SkippedNoted(t *testing.T) {
	lines := []string{"1|4711|2019-03-14||UL6|MOD|x|8650"}
	p := judgePatient(4711, lines, lines, 2)

	assert.Equal(t, models.ParityPass, p.Status)
	assert.Contains(t, p.Detail, "skipped")
}

// Fingerprints must not depend on read order, and numeric legacy ids must
// sort numerically, not lexically.
func TestFingerprint_OrderIndependent(t *testing.T) {
	a := []string{
		"9|4711|2019-03-14||UL6|MOD|x|8650",
		"10|4711|2019-04-02||LR7|O|y|4500",
		"100|4711|2019-05-01||UR1|B|z|1200",
	}
	b := []string{a[2], a[0], a[1]}

	assert.Equal(t, fingerprint(a), fingerprint(b))
	assert.NotEqual(t, fingerprint(a), fingerprint(a[:2]))
}

func TestRestorativeLine_SharedFieldsOnly(t *testing.T) {
	completed := models.NewCalendarDate(2019, time.March, 20)
	rec := &models.RestorativeTreatment{
		LegacyID:          1010387,
		LegacyPatientCode: 4711,
		TreatmentDate:     models.NewCalendarDate(2019, time.March, 14),
		CompletedDate:     &completed,
		Tooth:             "UL6",
		Surfaces:          "MOD",
		Description:       "Amalgam restoration",
		FeePence:          8650,
	}

	line := restorativeLine(rec)
	assert.Equal(t, "1010387|4711|2019-03-14|2019-03-20|UL6|MOD|Amalgam restoration|8650", line)
}

func TestTreatmentPlanLine_ItemOrderCanonical(t *testing.T) {
	plan := func(order []int) *models.TreatmentPlan {
		items := []models.TreatmentPlanItem{
			{LegacyID: 1, Code: "D2391", FeePence: 12000},
			{LegacyID: 2, Code: "D2392", FeePence: 15550},
		}
		out := make([]models.TreatmentPlanItem, 0, len(order))
		for _, idx := range order {
			out = append(out, items[idx])
		}
		return &models.TreatmentPlan{
			LegacyID:          300,
			LegacyPatientCode: 4711,
			PlanDate:          models.NewCalendarDate(2020, time.September, 1),
			Title:             "Upper restoration plan",
			Status:            "accepted",
			Items:             out,
		}
	}

	require.Equal(t, treatmentPlanLine(plan([]int{0, 1})), treatmentPlanLine(plan([]int{1, 0})))
}

func TestParityReport_ComputeOverall(t *testing.T) {
	report := &models.ParityReport{
		Patients: []models.PatientParity{
			{Status: models.ParityPass},
			{Status: models.ParityWarning, NoData: true},
		},
	}
	report.ComputeOverall()
	assert.Equal(t, models.ParityPass, report.Overall, "warnings alone never fail the report")

	report.Patients = append(report.Patients, models.PatientParity{Status: models.ParityFail})
	report.ComputeOverall()
	assert.Equal(t, models.ParityFail, report.Overall)
}
