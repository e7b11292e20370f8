package config

import (
	"fmt"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

// Invocation is the validated per-run configuration: one struct constructed
// at the CLI edge and passed down, never re-read from flags or environment
// inside components.
type Invocation struct {
	Domain       string
	Mode         string
	PatientCodes []int64
	WindowFrom   *models.CalendarDate
	WindowTo     *models.CalendarDate
	// AllowUnresolved imports records whose patient code has no mapping
	// with a null patient id, to be linked by a later backfill. Default is
	// to drop them as unmapped.
	AllowUnresolved bool
	OutputPath      string
}

// InvocationParams carries the raw CLI inputs for validation.
type InvocationParams struct {
	Domain          string
	Mode            string
	PatientCodes    []int64
	From            string // YYYY-MM-DD, optional
	To              string // YYYY-MM-DD, optional
	Confirm         string // must equal Domain when Mode is apply
	AllowUnresolved bool
	OutputPath      string
}

// NewInvocation validates raw CLI inputs into an Invocation.
// Apply mode requires the confirmation value to equal the domain selector,
// so a pasted command cannot silently apply against the wrong domain.
func NewInvocation(p InvocationParams) (*Invocation, error) {
	if !models.IsValidDomain(p.Domain) {
		return nil, fmt.Errorf("unknown domain %q (valid: %v)", p.Domain, models.AllDomains())
	}
	if !models.IsValidMode(p.Mode) {
		return nil, fmt.Errorf("unknown mode %q (valid: %s, %s)", p.Mode, models.ModeDryRun, models.ModeApply)
	}
	if p.Mode == models.ModeApply && p.Confirm != p.Domain {
		return nil, fmt.Errorf("%w: pass --confirm %s", apperrors.ErrConfirmationRequired, p.Domain)
	}

	inv := &Invocation{
		Domain:          p.Domain,
		Mode:            p.Mode,
		PatientCodes:    p.PatientCodes,
		AllowUnresolved: p.AllowUnresolved,
		OutputPath:      p.OutputPath,
	}

	if p.From != "" {
		from, err := models.ParseCalendarDate(p.From)
		if err != nil {
			return nil, fmt.Errorf("invalid --from: %w", err)
		}
		inv.WindowFrom = &from
	}
	if p.To != "" {
		to, err := models.ParseCalendarDate(p.To)
		if err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
		inv.WindowTo = &to
	}
	if inv.WindowFrom != nil && inv.WindowTo != nil && inv.WindowTo.Before(*inv.WindowFrom) {
		return nil, fmt.Errorf("date window is inverted: %s after %s", p.From, p.To)
	}

	for _, code := range p.PatientCodes {
		if code <= 0 {
			return nil, fmt.Errorf("invalid legacy patient code %d", code)
		}
	}

	return inv, nil
}

// IsApply reports whether the invocation will perform writes.
func (inv *Invocation) IsApply() bool {
	return inv.Mode == models.ModeApply
}
