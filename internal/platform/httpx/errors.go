// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/vetdesk/vetdesk/internal/platform/db"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries field level messages. It unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	p := problemFor(err)
	var ext ProblemExtender
	if errors.As(err, &ext) {
		p.Extensions = ext.ProblemExtensions()
	}
	WriteProblem(w, p)
}

func problemFor(err error) ProblemDetail {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: vErr.Error(), Errors: vErr.Fields}
	case errors.Is(err, ErrNotFound):
		return ProblemDetail{Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, db.ErrConcurrencyConflict):
		return ProblemDetail{
			Type:      "about:blank#concurrency-conflict",
			Title:     "Concurrent Update",
			Status:    http.StatusConflict,
			Detail:    err.Error(),
			Retryable: true,
		}
	case errors.Is(err, ErrDuplicate), errors.Is(err, db.ErrUniqueViolation):
		return ProblemDetail{Title: "Duplicate", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, ErrConflict):
		return ProblemDetail{Title: "Conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, ErrValidation):
		return ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, ErrForbidden):
		return ProblemDetail{Title: "Forbidden", Status: http.StatusForbidden, Detail: err.Error()}
	case errors.Is(err, ErrUnauthorized):
		return ProblemDetail{Title: "Unauthorized", Status: http.StatusUnauthorized, Detail: err.Error()}
	default:
		return ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError}
	}
}
