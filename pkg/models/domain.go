package models

// Domain selectors for the import pipeline. Each names one legacy entity
// family with its own extractor, normalizer and destination table.
const (
	DomainTreatmentPlans        = "treatment_plans"
	DomainRestorativeTreatments = "restorative_treatments"
)

// AllDomains lists every importable domain in a stable order.
func AllDomains() []string {
	return []string{DomainTreatmentPlans, DomainRestorativeTreatments}
}

// IsValidDomain reports whether s names a known domain.
func IsValidDomain(s string) bool {
	for _, d := range AllDomains() {
		if d == s {
			return true
		}
	}
	return false
}
