package model

import (
	"errors"
	"net/http"
)

// Error taxonomy for the platform. Operations wrap these sentinels with
// fmt.Errorf("...: %w", err) so callers can classify failures with errors.Is.
var (
	// ErrUnauthenticated means the credential is missing, invalid, or
	// expired. The connection or request is refused.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAccessDenied means the caller is authenticated but not a member of
	// the conversation. This is an expected outcome, not a system fault.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidInput means the request was malformed or empty and produced
	// no side effects.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnavailable means the persistence store is unreachable. The caller
	// may retry read-only operations.
	ErrUnavailable = errors.New("unavailable")
)

// KindOf maps an error chain to the wire error kind carried by
// operation-error events.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Unauthenticated"
	case errors.Is(err, ErrAccessDenied):
		return "AccessDenied"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrAlreadyExists):
		return "AlreadyExists"
	case errors.Is(err, ErrUnavailable):
		return "Unavailable"
	default:
		return "Internal"
	}
}

// HTTPStatus maps an error chain to an HTTP status code for the REST surface.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
