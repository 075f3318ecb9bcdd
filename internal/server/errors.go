// Package server provides the HTTP REST API for the job matcher.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/job-matcher/internal/resume"
)

// ErrUnauthenticated is returned when a request carries no usable token.
var ErrUnauthenticated = errors.New("invalid authentication")

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUpstream wraps a failure of an external dependency the request needed,
// such as the listings source.
type ErrUpstream struct {
	Op  string
	Err error
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}

// ErrUserSync indicates the identity provider could not be reached or the
// user row could not be written.
type ErrUserSync struct {
	UserID string
	Err    error
}

func (e *ErrUserSync) Error() string {
	return fmt.Sprintf("failed to sync user %s: %v", e.UserID, e.Err)
}

func (e *ErrUserSync) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		upstream   *ErrUpstream
	)
	switch {
	case errors.As(err, &validation),
		errors.Is(err, resume.ErrUnsupportedFile),
		errors.Is(err, resume.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, resume.ErrNoResume):
		return http.StatusNotFound
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
