package model

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWrappedErrors(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{fmt.Errorf("missing credential: %w", ErrUnauthenticated), "Unauthenticated"},
		{fmt.Errorf("not a member: %w", ErrAccessDenied), "AccessDenied"},
		{fmt.Errorf("empty content: %w", ErrInvalidInput), "InvalidInput"},
		{fmt.Errorf("conversation x: %w", ErrNotFound), "NotFound"},
		{fmt.Errorf("user y: %w", ErrAlreadyExists), "AlreadyExists"},
		{fmt.Errorf("store down: %w", ErrUnavailable), "Unavailable"},
		{errors.New("something else"), "Internal"},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.kind)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrAccessDenied, http.StatusForbidden},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.status {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}
