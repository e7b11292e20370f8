package legacy

import (
	"testing"
	"time"

	"github.com/dentaldesk/legacymigrate/pkg/models"
)

func datePtr(year int, month time.Month, day int) *models.CalendarDate {
	d := models.NewCalendarDate(year, month, day)
	return &d
}

func TestBuildScopeFilter(t *testing.T) {
	tests := []struct {
		name       string
		scope      Scope
		startParam int
		wantSQL    string
		wantArgs   int
	}{
		{
			name:       "empty scope",
			scope:      Scope{},
			startParam: 1,
			wantSQL:    "",
			wantArgs:   0,
		},
		{
			name:       "patient codes after keyset param",
			scope:      Scope{PatientCodes: []int64{10, 20}},
			startParam: 1,
			wantSQL:    " AND PatientCode IN (@p2, @p3)",
			wantArgs:   2,
		},
		{
			name: "full scope after keyset param",
			scope: Scope{
				PatientCodes: []int64{10},
				From:         datePtr(2020, time.January, 1),
				To:           datePtr(2020, time.December, 31),
			},
			startParam: 1,
			wantSQL:    " AND PatientCode IN (@p2) AND TreatmentDate >= @p3 AND TreatmentDate < @p4",
			wantArgs:   3,
		},
		{
			name:       "window only without leading params",
			scope:      Scope{From: datePtr(2021, time.June, 1)},
			startParam: 0,
			wantSQL:    " WHERE TreatmentDate >= @p1",
			wantArgs:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs := buildScopeFilter(tt.scope, "PatientCode", "TreatmentDate", tt.startParam)
			if gotSQL != tt.wantSQL {
				t.Errorf("sql = %q, want %q", gotSQL, tt.wantSQL)
			}
			if len(gotArgs) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(gotArgs), tt.wantArgs)
			}
		})
	}
}

// The window's upper bound is exclusive-next-day so DATETIME values late in
// the final day still land inside the window.
func TestBuildScopeFilter_InclusiveUpperBound(t *testing.T) {
	scope := Scope{To: datePtr(2020, time.March, 15)}
	_, args := buildScopeFilter(scope, "PatientCode", "TreatmentDate", 1)

	if len(args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(args))
	}
	bound, ok := args[0].(time.Time)
	if !ok {
		t.Fatalf("expected time.Time bound, got %T", args[0])
	}
	want := time.Date(2020, time.March, 16, 0, 0, 0, 0, time.UTC)
	if !bound.Equal(want) {
		t.Errorf("upper bound = %v, want %v", bound, want)
	}
}

func TestNewExtractor_PageSizeDefault(t *testing.T) {
	e := NewExtractor(nil, 0, nil, nil)
	if e.pageSize != 500 {
		t.Errorf("pageSize = %d, want 500", e.pageSize)
	}
}
