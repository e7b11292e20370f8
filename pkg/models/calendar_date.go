package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// CalendarDate is a calendar day with no time component.
//
// This is the single canonical representation for every legacy date field.
// The legacy system stores some dates as DATETIME and presents the same
// logical value with or without a time-of-day depending on the column, which
// historically broke idempotency when two code paths parsed the same value
// into different shapes. All coercion from raw legacy values happens in
// ParseCalendarDate/CalendarDateFromAny and nowhere else.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// calendarDateLayouts are the accepted textual forms, tried in order.
// Time components are discarded after parsing.
var calendarDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
}

// NewCalendarDate constructs a CalendarDate from its parts.
func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	return CalendarDate{Year: year, Month: month, Day: day}
}

// DateOf truncates a time.Time to its calendar day in the time's location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate parses a textual legacy date. Values carrying a time
// component parse to the same CalendarDate as their date-only form.
func ParseCalendarDate(s string) (CalendarDate, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return CalendarDate{}, fmt.Errorf("empty date value")
	}
	for _, layout := range calendarDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return DateOf(t), nil
		}
	}
	return CalendarDate{}, fmt.Errorf("unparseable date value %q", s)
}

// CalendarDateFromAny coerces a raw driver value into a CalendarDate.
// SQL Server DATETIME columns scan as time.Time; older text columns scan
// as string or []byte.
func CalendarDateFromAny(v any) (CalendarDate, error) {
	switch val := v.(type) {
	case time.Time:
		return DateOf(val), nil
	case string:
		return ParseCalendarDate(val)
	case []byte:
		return ParseCalendarDate(string(val))
	case nil:
		return CalendarDate{}, fmt.Errorf("null date value")
	default:
		return CalendarDate{}, fmt.Errorf("unsupported date type %T", v)
	}
}

// IsZero reports whether the date is the zero value.
func (d CalendarDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String returns the canonical YYYY-MM-DD encoding.
func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight UTC on the date. Used when binding to DATE columns.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Equal reports whether two dates name the same calendar day.
func (d CalendarDate) Equal(other CalendarDate) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

// Before reports whether d is earlier than other.
func (d CalendarDate) Before(other CalendarDate) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is later than other.
func (d CalendarDate) After(other CalendarDate) bool {
	return other.Before(d)
}

// Value implements driver.Valuer so a CalendarDate binds to a DATE column.
func (d CalendarDate) Value() (driver.Value, error) {
	return d.Time(), nil
}

// Scan implements sql.Scanner for reading DATE columns back.
func (d *CalendarDate) Scan(src any) error {
	parsed, err := CalendarDateFromAny(src)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON encodes the date as its canonical string form.
func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes from the canonical string form.
func (d *CalendarDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = CalendarDate{}
		return nil
	}
	parsed, err := ParseCalendarDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
