package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/config"
	"github.com/dentaldesk/legacymigrate/pkg/legacy"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/repositories"
)

// ParityVerifier compares source and destination through two independent
// read paths. It shares no code with the loader beyond the canonical value
// types, so a bug that corrupts the import cannot also corrupt its own
// verification. Each side is reduced to a per-patient count and a sha256
// fingerprint over canonical record strings sorted by legacy id.
type ParityVerifier struct {
	extractor    *legacy.Extractor
	restoratives repositories.RestorativeRepository
	plans        repositories.TreatmentPlanRepository
	logger       *zap.Logger
}

// NewParityVerifier creates a verifier over both read paths.
func NewParityVerifier(extractor *legacy.Extractor, restoratives repositories.RestorativeRepository, plans repositories.TreatmentPlanRepository, logger *zap.Logger) *ParityVerifier {
	return &ParityVerifier{
		extractor:    extractor,
		restoratives: restoratives,
		plans:        plans,
		logger:       logger,
	}
}

// Verify runs a parity check for the invocation's domain, cohort and
// window. The cohort is the explicit patient-code list when given,
// otherwise every patient code the source has rows for inside the window.
func (v *ParityVerifier) Verify(ctx context.Context, inv *config.Invocation) (*models.ParityReport, error) {
	report := &models.ParityReport{
		Domain:      inv.Domain,
		WindowFrom:  inv.WindowFrom,
		WindowTo:    inv.WindowTo,
		GeneratedAt: time.Now(),
	}

	cohort := inv.PatientCodes
	if len(cohort) == 0 {
		var err error
		cohort, err = v.extractor.DistinctPatientCodes(ctx, inv.Domain, scopeFromInvocation(inv))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cohort: %w", err)
		}
	}

	for _, code := range cohort {
		p, err := v.verifyPatient(ctx, inv, code)
		if err != nil {
			return nil, fmt.Errorf("parity check failed for patient code %d: %w", code, err)
		}
		report.Patients = append(report.Patients, p)
	}

	report.ComputeOverall()

	v.logger.Info("Parity verification finished",
		zap.String("domain", inv.Domain),
		zap.Int("patients", len(report.Patients)),
		zap.String("overall", report.Overall))

	return report, nil
}

func (v *ParityVerifier) verifyPatient(ctx context.Context, inv *config.Invocation, code int64) (models.PatientParity, error) {
	sourceLines, skipped, err := v.sourceLines(ctx, inv, code)
	if err != nil {
		return models.PatientParity{}, err
	}
	destLines, err := v.destinationLines(ctx, inv, code)
	if err != nil {
		return models.PatientParity{}, err
	}

	return judgePatient(code, sourceLines, destLines, skipped), nil
}

// judgePatient reduces both sides' canonical lines to a verdict.
func judgePatient(code int64, sourceLines, destLines []string, skipped int) models.PatientParity {
	p := models.PatientParity{
		LegacyPatientCode: code,
		SourceCount:       len(sourceLines),
		DestinationCount:  len(destLines),
	}

	// An empty source window is an expected case, not a migration defect.
	// Destination rows with no source counterpart are still surfaced in the
	// detail for the operator to chase.
	if len(sourceLines) == 0 {
		p.Status = models.ParityWarning
		p.NoData = true
		if len(destLines) == 0 {
			p.Detail = "no records on either side within the window"
		} else {
			p.Detail = fmt.Sprintf("no source records in the window; destination has %d", len(destLines))
		}
		if skipped > 0 {
			p.Detail += fmt.Sprintf("; %d source record(s) skipped as unnormalizable", skipped)
		}
		return p
	}

	p.SourceFingerprint = fingerprint(sourceLines)
	p.DestFingerprint = fingerprint(destLines)

	switch {
	case p.SourceCount != p.DestinationCount:
		p.Status = models.ParityFail
		p.Detail = fmt.Sprintf("count mismatch: source %d, destination %d", p.SourceCount, p.DestinationCount)
	case p.SourceFingerprint != p.DestFingerprint:
		p.Status = models.ParityFail
		p.Detail = "content fingerprint mismatch"
	default:
		p.Status = models.ParityPass
	}

	if skipped > 0 {
		note := fmt.Sprintf("%d source record(s) skipped as unnormalizable", skipped)
		if p.Detail == "" {
			p.Detail = note
		} else {
			p.Detail += "; " + note
		}
	}
	return p
}

// sourceLines reduces a patient's source rows to canonical strings.
// Unnormalizable rows are skipped and counted: they can never have been
// loaded, so comparing them would report import failures that are really
// validation drops.
func (v *ParityVerifier) sourceLines(ctx context.Context, inv *config.Invocation, code int64) ([]string, int, error) {
	scope := legacy.Scope{
		PatientCodes: []int64{code},
		From:         inv.WindowFrom,
		To:           inv.WindowTo,
	}
	normalizer := NewNormalizer()

	var lines []string
	skipped := 0

	switch inv.Domain {
	case models.DomainRestorativeTreatments:
		err := v.extractor.EachRestorativeTreatment(ctx, scope, func(raw models.LegacyRestorativeTreatment) error {
			rec, rejection := normalizer.NormalizeRestorative(raw)
			if rejection != nil {
				skipped++
				return nil
			}
			lines = append(lines, restorativeLine(rec))
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
	case models.DomainTreatmentPlans:
		err := v.extractor.EachTreatmentPlan(ctx, scope, func(raw models.LegacyTreatmentPlan) error {
			rec, rejection := normalizer.NormalizeTreatmentPlan(raw)
			if rejection != nil {
				skipped++
				return nil
			}
			lines = append(lines, treatmentPlanLine(rec))
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
	default:
		return nil, 0, fmt.Errorf("unknown domain %q", inv.Domain)
	}

	return lines, skipped, nil
}

func (v *ParityVerifier) destinationLines(ctx context.Context, inv *config.Invocation, code int64) ([]string, error) {
	var lines []string

	switch inv.Domain {
	case models.DomainRestorativeTreatments:
		recs, err := v.restoratives.ForPatientInWindow(ctx, code, inv.WindowFrom, inv.WindowTo)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			lines = append(lines, restorativeLine(rec))
		}
	case models.DomainTreatmentPlans:
		recs, err := v.plans.ForPatientInWindow(ctx, code, inv.WindowFrom, inv.WindowTo)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			lines = append(lines, treatmentPlanLine(rec))
		}
	default:
		return nil, fmt.Errorf("unknown domain %q", inv.Domain)
	}

	return lines, nil
}

// restorativeLine renders the canonical comparison string for one record.
// Only fields both sides share: destination-only state like patient_id and
// row timestamps stays out of the fingerprint.
func restorativeLine(r *models.RestorativeTreatment) string {
	completed := ""
	if r.CompletedDate != nil {
		completed = r.CompletedDate.String()
	}
	return fmt.Sprintf("%d|%d|%s|%s|%s|%s|%s|%d",
		r.LegacyID, r.LegacyPatientCode, r.TreatmentDate.String(), completed,
		r.Tooth, r.Surfaces, r.Description, r.FeePence)
}

func treatmentPlanLine(p *models.TreatmentPlan) string {
	items := sortedItems(p.Items)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%d|%s|%s|%s",
		p.LegacyID, p.LegacyPatientCode, p.PlanDate.String(), p.Title, p.Status)
	for _, item := range items {
		fmt.Fprintf(&sb, "|%d:%s:%s:%s:%d",
			item.LegacyID, item.Code, item.Description, item.Tooth, item.FeePence)
	}
	return sb.String()
}

// fingerprint hashes the canonical lines sorted by legacy id. Lines start
// with the numeric legacy id, which is parsed for ordering so "9" sorts
// before "10".
func fingerprint(lines []string) string {
	sorted := make([]string, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return lineLegacyID(sorted[i]) < lineLegacyID(sorted[j])
	})

	h := sha256.New()
	for _, line := range sorted {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func lineLegacyID(line string) int64 {
	var id int64
	for i := 0; i < len(line) && line[i] != '|'; i++ {
		id = id*10 + int64(line[i]-'0')
	}
	return id
}
