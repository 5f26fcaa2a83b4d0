// Package common defines the error taxonomy and shared constants used across
// hpcdrive layers. Callers should use errors.Is to match the categories; the
// wrapped message carries the human-readable reason.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Policy errors.
	ErrorForbidden    = errors.New("forbidden")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation and state-transition errors.
	ErrorBadRequest = errors.New("bad request")

	// Upstream collaborator could not be reached or timed out.
	ErrorServiceUnavailable = errors.New("service unavailable")

	ErrorInternal = errors.New("internal error")
)

// Errorf wraps category with a formatted reason, e.g.
//
//	common.Errorf(common.ErrorConflict, "item %q already exists", name)
func Errorf(category error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", category, fmt.Sprintf(format, args...))
}

// Category returns the taxonomy sentinel err belongs to, or ErrorInternal
// when err is not classified.
func Category(err error) error {
	for _, c := range []error{
		ErrorNotFound,
		ErrorConflict,
		ErrorForbidden,
		ErrorUnauthorized,
		ErrorBadRequest,
		ErrorServiceUnavailable,
		ErrorInternal,
	} {
		if errors.Is(err, c) {
			return c
		}
	}
	return ErrorInternal
}
