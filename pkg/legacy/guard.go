// Package legacy provides strictly read-only access to the legacy
// practice-management database.
//
// The source may never be mutated. Enforcement is layered: the capability
// type in readonly.go exposes no write method at all, and every statement
// and every bound string value still passes the guard below before it
// reaches the driver.
package legacy

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
)

// GuardStatement validates that a SQL statement is a single read-only
// query. It returns apperrors.ErrReadOnlyViolation (wrapped with detail)
// for anything else. The check runs before the network layer ever sees the
// statement.
func GuardStatement(sqlQuery string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", apperrors.ErrReadOnlyViolation)
	}

	normalized := stripTrailingSemicolon(trimmed)

	// Any remaining semicolon outside string literals means a second
	// statement is hiding behind the first.
	if hasSemicolonOutsideStrings(normalized) {
		return fmt.Errorf("%w: multiple statements", apperrors.ErrReadOnlyViolation)
	}

	keyword := firstKeyword(normalized)
	if keyword != "SELECT" && keyword != "WITH" {
		return fmt.Errorf("%w: statement begins with %s", apperrors.ErrReadOnlyViolation, keyword)
	}

	return nil
}

// GuardValue screens an operator-supplied string value for SQL injection
// patterns before it is bound as a query parameter. Non-string values
// cannot carry injection and pass unchecked.
func GuardValue(name string, value any) error {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(strValue); isSQLi {
		return fmt.Errorf("%w: parameter %s matched injection fingerprint %s",
			apperrors.ErrReadOnlyViolation, name, string(fingerprint))
	}
	return nil
}

// firstKeyword returns the first SQL keyword, upper-cased, skipping line
// and block comments.
func firstKeyword(sqlQuery string) string {
	rest := sqlQuery
	for {
		rest = strings.TrimLeft(rest, " \t\n\r")
		switch {
		case strings.HasPrefix(rest, "--"):
			if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
				rest = rest[idx+1:]
				continue
			}
			return ""
		case strings.HasPrefix(rest, "/*"):
			if idx := strings.Index(rest, "*/"); idx >= 0 {
				rest = rest[idx+2:]
				continue
			}
			return ""
		}
		break
	}

	end := 0
	for end < len(rest) {
		c := rest[end]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			end++
			continue
		}
		break
	}
	return strings.ToUpper(rest[:end])
}

// hasSemicolonOutsideStrings reports whether the SQL contains a semicolon
// outside of string literals. Handles both backslash escapes and the SQL
// standard doubled-quote escape.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				// A doubled quote ('') exits and immediately re-enters,
				// which correctly keeps us inside the string.
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes one trailing semicolon and surrounding
// whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}
