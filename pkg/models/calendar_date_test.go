package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseCalendarDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    CalendarDate
		wantErr bool
	}{
		{"date only", "2019-03-14", NewCalendarDate(2019, time.March, 14), false},
		{"datetime with T", "2019-03-14T09:30:00", NewCalendarDate(2019, time.March, 14), false},
		{"datetime with space", "2019-03-14 09:30:00", NewCalendarDate(2019, time.March, 14), false},
		{"uk format", "14/03/2019", NewCalendarDate(2019, time.March, 14), false},
		{"surrounding whitespace", "  2019-03-14  ", NewCalendarDate(2019, time.March, 14), false},
		{"empty", "", CalendarDate{}, true},
		{"garbage", "not a date", CalendarDate{}, true},
		{"impossible day", "2019-02-31", CalendarDate{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCalendarDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseCalendarDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// The same logical day must produce one representation regardless of
// whether the legacy column carried a time-of-day.
func TestCalendarDate_CanonicalAcrossShapes(t *testing.T) {
	inputs := []any{
		"2021-06-01",
		"2021-06-01T14:45:12",
		"2021-06-01 14:45:12",
		[]byte("2021-06-01"),
		time.Date(2021, time.June, 1, 23, 59, 59, 0, time.UTC),
	}

	want := NewCalendarDate(2021, time.June, 1)
	for _, in := range inputs {
		got, err := CalendarDateFromAny(in)
		if err != nil {
			t.Fatalf("CalendarDateFromAny(%v): %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("CalendarDateFromAny(%v) = %v, want %v", in, got, want)
		}
		if got.String() != "2021-06-01" {
			t.Errorf("String() = %q, want 2021-06-01", got.String())
		}
	}
}

func TestCalendarDateFromAny_Rejections(t *testing.T) {
	if _, err := CalendarDateFromAny(nil); err == nil {
		t.Error("expected error for nil")
	}
	if _, err := CalendarDateFromAny(42); err == nil {
		t.Error("expected error for int")
	}
}

func TestCalendarDate_Ordering(t *testing.T) {
	a := NewCalendarDate(2020, time.December, 31)
	b := NewCalendarDate(2021, time.January, 1)

	if !a.Before(b) {
		t.Error("expected 2020-12-31 before 2021-01-01")
	}
	if !b.After(a) {
		t.Error("expected 2021-01-01 after 2020-12-31")
	}
	if a.Before(a) || a.After(a) {
		t.Error("a date is neither before nor after itself")
	}
}

func TestCalendarDate_ScanRoundTrip(t *testing.T) {
	orig := NewCalendarDate(2018, time.November, 5)

	val, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned CalendarDate
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !scanned.Equal(orig) {
		t.Errorf("round trip changed date: %v -> %v", orig, scanned)
	}
}

func TestCalendarDate_JSON(t *testing.T) {
	d := NewCalendarDate(2022, time.February, 3)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"2022-02-03"` {
		t.Errorf("Marshal = %s, want \"2022-02-03\"", data)
	}

	var back CalendarDate
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip changed date: %v -> %v", d, back)
	}
}
