package models

import (
	"fmt"
	"strings"
)

// Monetary amounts are carried as integer pence throughout the engine.
// Floats are never used for money: the legacy system stores fees as DECIMAL
// and a float round-trip would drift against the parity fingerprints.

// ParsePence parses a decimal string like "12.50" or "-3.05" into pence.
// More than two fractional digits are accepted only when the extra digits
// are zeros (SQL Server DECIMAL columns scan as "12.5000"); any other
// sub-penny precision is rejected rather than rounded.
func ParsePence(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	switch trimmed[0] {
	case '-':
		negative = true
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	wholePart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		wholePart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}

	var whole int64
	for _, c := range wholePart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		whole = whole*10 + int64(c-'0')
	}

	var frac int64
	for i, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		switch {
		case i < 2:
			frac = frac*10 + int64(c-'0')
		case c != '0':
			return 0, fmt.Errorf("amount %q has sub-penny precision", s)
		}
	}
	if len(fracPart) == 1 {
		frac *= 10
	}

	pence := whole*100 + frac
	if negative {
		pence = -pence
	}
	return pence, nil
}

// PenceFromAny coerces a raw driver value into pence. DECIMAL columns scan
// as []byte or string. Numeric driver types are rejected: an int64 would be
// ambiguous between pounds and pence, and money never transits floats.
func PenceFromAny(v any) (int64, error) {
	switch val := v.(type) {
	case string:
		return ParsePence(val)
	case []byte:
		return ParsePence(string(val))
	case nil:
		return 0, fmt.Errorf("null amount")
	default:
		// float64 deliberately unsupported: money never transits floats.
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}

// FormatPence renders pence as a decimal string like "12.50".
func FormatPence(pence int64) string {
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return fmt.Sprintf("%s%d.%02d", sign, pence/100, pence%100)
}
