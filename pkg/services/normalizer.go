package services

import (
	"fmt"

	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// Rejection explains why a legacy record cannot be normalized. The reason
// is always drawn from the closed drop taxonomy; there is no best-effort
// defaulting, because a silently defaulted value would corrupt parity
// comparisons later.
type Rejection struct {
	Reason models.DropReason
	Detail string
}

// Normalizer converts raw legacy field representations into canonical
// destination shapes. All date coercion funnels through
// models.CalendarDateFromAny and all money through models.PenceFromAny, so
// a value parses to exactly one on-disk representation no matter which
// path saw it first.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeRestorative converts a raw restorative treatment row. Returns
// the canonical record or a rejection, never both.
func (n *Normalizer) NormalizeRestorative(rec models.LegacyRestorativeTreatment) (*models.RestorativeTreatment, *Rejection) {
	treatmentDate, err := models.CalendarDateFromAny(rec.TreatmentDate)
	if err != nil {
		return nil, &Rejection{
			Reason: models.DropInvalidDate,
			Detail: fmt.Sprintf("treatment_date: %v", err),
		}
	}

	var completed *models.CalendarDate
	if rec.CompletedDate != nil {
		d, err := models.CalendarDateFromAny(rec.CompletedDate)
		if err != nil {
			return nil, &Rejection{
				Reason: models.DropInvalidDate,
				Detail: fmt.Sprintf("completed_date: %v", err),
			}
		}
		completed = &d
	}

	feePence, err := models.PenceFromAny(rec.Fee)
	if err != nil {
		return nil, &Rejection{
			Reason: models.DropInvalidAmount,
			Detail: fmt.Sprintf("fee: %v", err),
		}
	}

	return &models.RestorativeTreatment{
		LegacyID:          rec.ID,
		LegacyPatientCode: rec.PatientCode,
		TreatmentDate:     treatmentDate,
		CompletedDate:     completed,
		Tooth:             rec.Tooth,
		Surfaces:          rec.Surfaces,
		Description:       rec.Description,
		FeePence:          feePence,
	}, nil
}

// NormalizeTreatmentPlan converts a raw plan row with its items. A plan is
// rejected whole if any of its items fails: loading a partial plan would
// make parity fingerprints disagree forever.
func (n *Normalizer) NormalizeTreatmentPlan(rec models.LegacyTreatmentPlan) (*models.TreatmentPlan, *Rejection) {
	planDate, err := models.CalendarDateFromAny(rec.PlanDate)
	if err != nil {
		return nil, &Rejection{
			Reason: models.DropInvalidDate,
			Detail: fmt.Sprintf("plan_date: %v", err),
		}
	}

	plan := &models.TreatmentPlan{
		LegacyID:          rec.ID,
		LegacyPatientCode: rec.PatientCode,
		PlanDate:          planDate,
		Title:             rec.Title,
		Status:            rec.Status,
	}

	for _, item := range rec.Items {
		feePence, err := models.PenceFromAny(item.Fee)
		if err != nil {
			return nil, &Rejection{
				Reason: models.DropInvalidAmount,
				Detail: fmt.Sprintf("item %d fee: %v", item.ID, err),
			}
		}
		plan.Items = append(plan.Items, models.TreatmentPlanItem{
			LegacyID:    item.ID,
			Code:        item.Code,
			Description: item.Description,
			Tooth:       item.Tooth,
			FeePence:    feePence,
		})
	}

	return plan, nil
}
