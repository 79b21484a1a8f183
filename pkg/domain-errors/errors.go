// Package errors provides coded domain errors. Services return these so
// transports can map failures to wire statuses without inspecting internals.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are part of the service contract:
// callers branch on them, transports map them to status codes.
type Code string

const (
	// CodeBadRequest marks malformed input rejected before domain rules run.
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks a business-rule rejection. Not retryable.
	CodeValidation Code = "validation"
	// CodeInvariantViolation marks an illegal state change attempt.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks an optimistic-concurrency loss or uniqueness clash.
	// Callers should reload and retry.
	CodeConflict Code = "conflict"
	// CodeTimeout marks a dependency deadline expiry. Safe to retry.
	CodeTimeout Code = "timeout"
	// CodeUnavailable marks a dependency outage. Safe to retry with backoff.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the error's classification.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable description without the cause chain.
func (e *Error) Message() string { return e.msg }

// New builds a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{code: code, msg: msg}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the cause chain.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: msg, err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so nothing leaks as a raw failure.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the status the HTTP transport reports.
func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
