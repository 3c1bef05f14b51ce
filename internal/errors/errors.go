// Package errors provides coded domain errors for the score server.
//
// Usage:
//
//	// In validators - return typed errors naming the offending field
//	return errors.ImplausibleValue("survivalTimeSeconds", "survival time below human reaction floor")
//
//	// In handlers - branch on the code
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) && domainErr.Code == errors.CodeRateLimited {
//	    w.Header().Set("Retry-After", strconv.Itoa(domainErr.RetryAfterSeconds()))
//	}
package errors

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Validation codes are client-caused and never retried by the server.
const (
	CodeMalformedInput    Code = "MALFORMED_INPUT"
	CodeImplausibleValue  Code = "IMPLAUSIBLE_VALUE"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeSignatureMismatch Code = "SIGNATURE_MISMATCH"
	CodeClockSkewExceeded Code = "CLOCK_SKEW_EXCEEDED"
)

// Infrastructure and lookup codes.
const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeStoreTimeout     Code = "STORE_TIMEOUT"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeConflict         Code = "CONFLICT"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeInternal         Code = "INTERNAL"
)

// IsValidation reports whether the code belongs to the validation taxonomy.
func (c Code) IsValidation() bool {
	switch c {
	case CodeMalformedInput, CodeImplausibleValue, CodeRateLimited, CodeSignatureMismatch, CodeClockSkewExceeded:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMalformedInput, CodeImplausibleValue, CodeSignatureMismatch, CodeClockSkewExceeded:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeStoreTimeout, CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, the field it concerns, and an optional
// retry hint.
type Error struct {
	Code       Code          `json:"code"`
	Message    string        `json:"message"`
	Field      string        `json:"field,omitempty"`
	RetryAfter time.Duration `json:"-"`
	Details    any           `json:"details,omitempty"`
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, never below one
// when a hint is present.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Max(1, math.Ceil(e.RetryAfter.Seconds())))
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.cause = err
	return &cp
}

// Sentinel errors for use with errors.Is().
var (
	ErrMalformedInput    = &Error{Code: CodeMalformedInput, Message: "malformed input"}
	ErrImplausibleValue  = &Error{Code: CodeImplausibleValue, Message: "implausible value"}
	ErrRateLimited       = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrSignatureMismatch = &Error{Code: CodeSignatureMismatch, Message: "signature mismatch"}
	ErrClockSkewExceeded = &Error{Code: CodeClockSkewExceeded, Message: "clock skew exceeded"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrStoreTimeout      = &Error{Code: CodeStoreTimeout, Message: "store timeout"}
	ErrStoreUnavailable  = &Error{Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
)

// MalformedInput creates a contract violation error for field.
func MalformedInput(field, msg string) *Error {
	return &Error{Code: CodeMalformedInput, Field: field, Message: msg}
}

// ImplausibleValue creates a plausibility error for field.
func ImplausibleValue(field, msg string) *Error {
	return &Error{Code: CodeImplausibleValue, Field: field, Message: msg}
}

// ImplausibleValuef creates a plausibility error with a formatted message.
func ImplausibleValuef(field, format string, args ...any) *Error {
	return &Error{Code: CodeImplausibleValue, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates a rate-limit error with a retry hint.
func RateLimited(field string, retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Field:      field,
		Message:    "too many submissions, try again later",
		RetryAfter: retryAfter,
	}
}

// SignatureMismatch creates a signature error for field.
func SignatureMismatch(field string) *Error {
	return &Error{Code: CodeSignatureMismatch, Field: field, Message: "session signature does not match submission"}
}

// ClockSkewExceeded creates a skew error for field.
func ClockSkewExceeded(field string, skew, tolerance time.Duration) *Error {
	return &Error{
		Code:    CodeClockSkewExceeded,
		Field:   field,
		Message: fmt.Sprintf("client timestamp is %s away from server time (tolerance %s)", skew.Round(time.Second), tolerance),
	}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
