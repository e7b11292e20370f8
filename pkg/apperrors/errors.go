package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrMappingExists wraps ErrConflict so callers can match either the
	// specific mapping collision or the general conflict class.
	ErrMappingExists = fmt.Errorf("%w: legacy patient code is already mapped", ErrConflict)

	ErrPatientNotFound      = errors.New("destination patient does not exist")
	ErrReadOnlyViolation    = errors.New("statement rejected: legacy source is read-only")
	ErrConfirmationRequired = errors.New("apply mode requires an explicit confirmation value")
)
