package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/retry"
)

// Querier is the read capability the extractor needs. *ReadOnly satisfies
// it; tests supply fakes.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Scope bounds an extraction to a patient-code set and a date window.
// Empty fields mean unbounded.
type Scope struct {
	PatientCodes []int64
	From         *models.CalendarDate
	To           *models.CalendarDate
}

// Extractor issues bounded, keyset-paginated read queries against the
// legacy source. Pages are ordered by the legacy primary key so an
// interrupted run resumes from the last processed key without re-scanning
// or skipping rows. Each page is retried with bounded backoff on transient
// connectivity errors.
type Extractor struct {
	src      Querier
	pageSize int
	retryCfg *retry.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewExtractor creates an extractor over a read-only source handle.
func NewExtractor(src Querier, pageSize int, retryCfg *retry.Config, logger *zap.Logger) *Extractor {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Extractor{
		src:      src,
		pageSize: pageSize,
		retryCfg: retryCfg,
		logger:   logger,
		now:      time.Now,
	}
}

// EachRestorativeTreatment streams restorative treatments in legacy-id
// order, invoking fn for each record. Returning an error from fn stops the
// stream.
func (e *Extractor) EachRestorativeTreatment(ctx context.Context, scope Scope, fn func(models.LegacyRestorativeTreatment) error) error {
	afterID := int64(0)
	for {
		page, err := retry.DoWithResult(ctx, e.retryCfg, func() ([]models.LegacyRestorativeTreatment, error) {
			return e.restorativePage(ctx, scope, afterID)
		})
		if err != nil {
			return fmt.Errorf("failed to extract restorative treatments after id %d: %w", afterID, err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, rec := range page {
			if err := fn(rec); err != nil {
				return err
			}
		}
		afterID = page[len(page)-1].ID
		if len(page) < e.pageSize {
			return nil
		}
	}
}

// EachTreatmentPlan streams treatment plans (with their items) in
// legacy-id order.
func (e *Extractor) EachTreatmentPlan(ctx context.Context, scope Scope, fn func(models.LegacyTreatmentPlan) error) error {
	afterID := int64(0)
	for {
		page, err := retry.DoWithResult(ctx, e.retryCfg, func() ([]models.LegacyTreatmentPlan, error) {
			return e.treatmentPlanPage(ctx, scope, afterID)
		})
		if err != nil {
			return fmt.Errorf("failed to extract treatment plans after id %d: %w", afterID, err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, rec := range page {
			if err := fn(rec); err != nil {
				return err
			}
		}
		afterID = page[len(page)-1].ID
		if len(page) < e.pageSize {
			return nil
		}
	}
}

// DistinctPatientCodes returns the legacy patient codes that have rows for
// the domain inside the scope. Used to resolve a cohort when the operator
// did not pass an explicit patient-code list.
func (e *Extractor) DistinctPatientCodes(ctx context.Context, domain string, scope Scope) ([]int64, error) {
	var table, dateCol string
	switch domain {
	case models.DomainRestorativeTreatments:
		table, dateCol = "[dbo].[RestorativeTreatment]", "TreatmentDate"
	case models.DomainTreatmentPlans:
		table, dateCol = "[dbo].[TreatmentPlan]", "PlanDate"
	default:
		return nil, fmt.Errorf("unknown domain %q", domain)
	}

	where, args := buildScopeFilter(scope, "PatientCode", dateCol, 0)
	query := fmt.Sprintf("SELECT DISTINCT PatientCode FROM %s%s ORDER BY PatientCode", table, where)

	rows, err := e.src.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient codes: %w", err)
	}
	defer rows.Close()

	var codes []int64
	for rows.Next() {
		var code int64
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan patient code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// restorativePage fetches one keyset page of restorative treatments.
func (e *Extractor) restorativePage(ctx context.Context, scope Scope, afterID int64) ([]models.LegacyRestorativeTreatment, error) {
	where, args := buildScopeFilter(scope, "PatientCode", "TreatmentDate", 1)
	args = append([]any{afterID}, args...)

	query := fmt.Sprintf(`SELECT TOP (%d)
		TreatmentID, PatientCode, TreatmentDate, CompletedDate, Tooth, Surfaces, Description, Fee
	FROM [dbo].[RestorativeTreatment]
	WHERE TreatmentID > @p1%s
	ORDER BY TreatmentID`, e.pageSize, where)

	rows, err := e.src.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	extractedAt := e.now()
	var page []models.LegacyRestorativeTreatment
	for rows.Next() {
		var rec models.LegacyRestorativeTreatment
		var tooth, surfaces, description sql.NullString
		if err := rows.Scan(&rec.ID, &rec.PatientCode, &rec.TreatmentDate, &rec.CompletedDate,
			&tooth, &surfaces, &description, &rec.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan restorative treatment: %w", err)
		}
		rec.Tooth = tooth.String
		rec.Surfaces = surfaces.String
		rec.Description = description.String
		rec.ExtractedAt = extractedAt
		page = append(page, rec)
	}
	return page, rows.Err()
}

// treatmentPlanPage fetches one keyset page of plan headers plus all items
// belonging to the page's plans.
func (e *Extractor) treatmentPlanPage(ctx context.Context, scope Scope, afterID int64) ([]models.LegacyTreatmentPlan, error) {
	where, args := buildScopeFilter(scope, "PatientCode", "PlanDate", 1)
	args = append([]any{afterID}, args...)

	query := fmt.Sprintf(`SELECT TOP (%d)
		PlanID, PatientCode, PlanDate, Title, Status
	FROM [dbo].[TreatmentPlan]
	WHERE PlanID > @p1%s
	ORDER BY PlanID`, e.pageSize, where)

	rows, err := e.src.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	extractedAt := e.now()
	var page []models.LegacyTreatmentPlan
	byID := make(map[int64]int)
	for rows.Next() {
		var rec models.LegacyTreatmentPlan
		var title, status sql.NullString
		if err := rows.Scan(&rec.ID, &rec.PatientCode, &rec.PlanDate, &title, &status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan treatment plan: %w", err)
		}
		rec.Title = title.String
		rec.Status = status.String
		rec.ExtractedAt = extractedAt
		byID[rec.ID] = len(page)
		page = append(page, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(page) == 0 {
		return page, nil
	}

	if err := e.attachPlanItems(ctx, page, byID); err != nil {
		return nil, err
	}
	return page, nil
}

// attachPlanItems loads items for the given plans in one query.
func (e *Extractor) attachPlanItems(ctx context.Context, page []models.LegacyTreatmentPlan, byID map[int64]int) error {
	placeholders := make([]string, 0, len(page))
	args := make([]any, 0, len(page))
	for i, plan := range page {
		placeholders = append(placeholders, fmt.Sprintf("@p%d", i+1))
		args = append(args, plan.ID)
	}

	query := fmt.Sprintf(`SELECT ItemID, PlanID, Code, Description, Tooth, Fee
	FROM [dbo].[TreatmentPlanItem]
	WHERE PlanID IN (%s)
	ORDER BY PlanID, ItemID`, strings.Join(placeholders, ", "))

	rows, err := e.src.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load plan items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.LegacyTreatmentPlanItem
		var code, description, tooth sql.NullString
		if err := rows.Scan(&item.ID, &item.PlanID, &code, &description, &tooth, &item.Fee); err != nil {
			return fmt.Errorf("failed to scan plan item: %w", err)
		}
		item.Code = code.String
		item.Description = description.String
		item.Tooth = tooth.String
		if idx, ok := byID[item.PlanID]; ok {
			page[idx].Items = append(page[idx].Items, item)
		}
	}
	return rows.Err()
}

// buildScopeFilter renders the patient-code and date-window predicates.
// startParam is the number of parameters already consumed by the caller;
// generated placeholders continue from there. The date upper bound is
// exclusive-next-day so DATETIME columns with a time-of-day still fall
// inside the window.
func buildScopeFilter(scope Scope, codeCol, dateCol string, startParam int) (string, []any) {
	var sb strings.Builder
	var args []any
	param := startParam

	if len(scope.PatientCodes) > 0 {
		placeholders := make([]string, 0, len(scope.PatientCodes))
		for _, code := range scope.PatientCodes {
			param++
			placeholders = append(placeholders, fmt.Sprintf("@p%d", param))
			args = append(args, code)
		}
		fmt.Fprintf(&sb, " AND %s IN (%s)", codeCol, strings.Join(placeholders, ", "))
	}
	if scope.From != nil {
		param++
		fmt.Fprintf(&sb, " AND %s >= @p%d", dateCol, param)
		args = append(args, scope.From.Time())
	}
	if scope.To != nil {
		param++
		fmt.Fprintf(&sb, " AND %s < @p%d", dateCol, param)
		args = append(args, scope.To.Time().AddDate(0, 0, 1))
	}

	where := sb.String()
	if startParam == 0 && where != "" {
		where = " WHERE " + where[len(" AND "):]
	}
	return where, args
}
