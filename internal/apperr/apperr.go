// Package apperr defines the error taxonomy shared by services and handlers.
// Each Error carries a stable code and the HTTP status it maps to, so the
// transport layer never has to guess how a failure should be reported.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-visible error classification.
type Code string

const (
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is the application error.  Message is safe to show to clients; Err
// holds the underlying cause for logs only.
type Error struct {
	Code     Code
	Message  string
	Err      error
	HTTPCode int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, apperr.ErrForbidden)
// works for any forbidden error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newErr(code Code, status int, msg string) *Error {
	return &Error{Code: code, Message: msg, HTTPCode: status}
}

// Sentinels usable with errors.Is.
var (
	ErrValidation   = newErr(CodeValidation, http.StatusBadRequest, "validation failed")
	ErrUnauthorized = newErr(CodeUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = newErr(CodeForbidden, http.StatusForbidden, "forbidden")
	ErrNotFound     = newErr(CodeNotFound, http.StatusNotFound, "not found")
	ErrConflict     = newErr(CodeConflict, http.StatusConflict, "conflict")
	ErrInternal     = newErr(CodeInternal, http.StatusInternalServerError, "internal server error")
)

func Validation(msg string) *Error   { return newErr(CodeValidation, http.StatusBadRequest, msg) }
func Unauthorized(msg string) *Error { return newErr(CodeUnauthorized, http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error    { return newErr(CodeForbidden, http.StatusForbidden, msg) }
func NotFound(msg string) *Error     { return newErr(CodeNotFound, http.StatusNotFound, msg) }
func Conflict(msg string) *Error     { return newErr(CodeConflict, http.StatusConflict, msg) }

// Internal wraps an unexpected failure.  The client only ever sees the
// generic message.
func Internal(err error) *Error {
	e := newErr(CodeInternal, http.StatusInternalServerError, "internal server error")
	e.Err = err
	return e
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}
