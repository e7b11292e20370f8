package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaldesk/legacymigrate/pkg/models"
)

func TestDropCollector_Add(t *testing.T) {
	c := NewDropCollector(uuid.New(), models.DomainRestorativeTreatments)

	require.NoError(t, c.Add(101, 4711, models.DropUnmappedPatient, "no mapping"))
	require.NoError(t, c.Add(102, 4711, models.DropInvalidDate, "treatment_date: null"))

	assert.Equal(t, 2, c.Count())
	assert.True(t, c.WasDropped(101))
	assert.False(t, c.WasDropped(103))

	byReason := c.ByReason()
	assert.Equal(t, 1, byReason[models.DropUnmappedPatient])
	assert.Equal(t, 1, byReason[models.DropInvalidDate])
}

func TestDropCollector_RejectsUnknownReason(t *testing.T) {
	c := NewDropCollector(uuid.New(), models.DomainRestorativeTreatments)

	err := c.Add(101, 4711, models.DropReason("unknown"), "")
	require.Error(t, err)
	assert.Equal(t, 0, c.Count())
}

// A record classified twice would either double-count or mask a pipeline
// bug, so the second classification is an error.
func TestDropCollector_RejectsDoubleClassification(t *testing.T) {
	c := NewDropCollector(uuid.New(), models.DomainRestorativeTreatments)

	require.NoError(t, c.Add(101, 4711, models.DropInvalidDate, ""))
	err := c.Add(101, 4711, models.DropInvalidAmount, "")
	require.Error(t, err)
	assert.Equal(t, 1, c.Count())
}

func TestDropCollector_RecordsCarryRunAndDomain(t *testing.T) {
	runID := uuid.New()
	c := NewDropCollector(runID, models.DomainTreatmentPlans)

	require.NoError(t, c.Add(300, 4711, models.DropInvalidAmount, "item 2 fee"))

	recs := c.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, runID, recs[0].RunID)
	assert.Equal(t, models.DomainTreatmentPlans, recs[0].Domain)
	assert.Equal(t, int64(300), recs[0].LegacyID)
	assert.Equal(t, int64(4711), recs[0].LegacyPatientCode)
}
