// Package apperr defines the error kinds shared by the domain services and the
// HTTP boundary. Services wrap one of the sentinel kinds; handlers and the echo
// error handler map the kind to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Validation returns an error of kind ErrValidation with the formatted message.
func Validation(format string, args ...interface{}) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an error of kind ErrNotFound naming the missing resource.
func NotFound(resource string) error {
	return &kindError{kind: ErrNotFound, msg: resource + " not found"}
}

// Conflict returns an error of kind ErrConflict with the formatted message.
func Conflict(format string, args ...interface{}) error {
	return &kindError{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// StatusCode maps an error to the HTTP status that represents its kind.
// Unclassified errors are infrastructure failures.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsDomain reports whether err carries one of the domain kinds.
func IsDomain(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
