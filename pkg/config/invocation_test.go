package config

import (
	"errors"
	"testing"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/models"
)

func TestNewInvocation_DryRunDefaults(t *testing.T) {
	inv, err := NewInvocation(InvocationParams{
		Domain: models.DomainRestorativeTreatments,
		Mode:   models.ModeDryRun,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.IsApply() {
		t.Error("dry_run invocation must not report apply")
	}
	if inv.WindowFrom != nil || inv.WindowTo != nil {
		t.Error("expected unbounded window")
	}
}

func TestNewInvocation_ApplyRequiresConfirmation(t *testing.T) {
	// No confirmation at all.
	_, err := NewInvocation(InvocationParams{
		Domain: models.DomainTreatmentPlans,
		Mode:   models.ModeApply,
	})
	if !errors.Is(err, apperrors.ErrConfirmationRequired) {
		t.Errorf("expected ErrConfirmationRequired, got %v", err)
	}

	// The wrong domain's confirmation value must not carry over.
	_, err = NewInvocation(InvocationParams{
		Domain:  models.DomainTreatmentPlans,
		Mode:    models.ModeApply,
		Confirm: models.DomainRestorativeTreatments,
	})
	if !errors.Is(err, apperrors.ErrConfirmationRequired) {
		t.Errorf("expected ErrConfirmationRequired for mismatched confirm, got %v", err)
	}

	// Matching confirmation passes.
	inv, err := NewInvocation(InvocationParams{
		Domain:  models.DomainTreatmentPlans,
		Mode:    models.ModeApply,
		Confirm: models.DomainTreatmentPlans,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inv.IsApply() {
		t.Error("expected apply invocation")
	}
}

func TestNewInvocation_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params InvocationParams
	}{
		{"unknown domain", InvocationParams{Domain: "appointments", Mode: models.ModeDryRun}},
		{"unknown mode", InvocationParams{Domain: models.DomainTreatmentPlans, Mode: "rehearse"}},
		{"bad from date", InvocationParams{Domain: models.DomainTreatmentPlans, Mode: models.ModeDryRun, From: "01-01-2020"}},
		{"bad to date", InvocationParams{Domain: models.DomainTreatmentPlans, Mode: models.ModeDryRun, To: "soon"}},
		{"inverted window", InvocationParams{Domain: models.DomainTreatmentPlans, Mode: models.ModeDryRun, From: "2021-01-01", To: "2020-01-01"}},
		{"non-positive patient code", InvocationParams{Domain: models.DomainTreatmentPlans, Mode: models.ModeDryRun, PatientCodes: []int64{10, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewInvocation(tt.params); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewInvocation_Window(t *testing.T) {
	inv, err := NewInvocation(InvocationParams{
		Domain: models.DomainRestorativeTreatments,
		Mode:   models.ModeDryRun,
		From:   "2020-01-01",
		To:     "2020-06-30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.WindowFrom == nil || inv.WindowFrom.String() != "2020-01-01" {
		t.Errorf("WindowFrom = %v, want 2020-01-01", inv.WindowFrom)
	}
	if inv.WindowTo == nil || inv.WindowTo.String() != "2020-06-30" {
		t.Errorf("WindowTo = %v, want 2020-06-30", inv.WindowTo)
	}
}
