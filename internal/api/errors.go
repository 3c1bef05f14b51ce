package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status            int
	headers           http.Header
	Accepted          *bool  `json:"accepted,omitempty" doc:"Always false for a rejected submission"`
	Code              string `json:"code" doc:"Machine-readable error code"`
	Message           string `json:"message" doc:"Human-readable error message"`
	Reason            string `json:"reason,omitempty" doc:"Why a submission was rejected"`
	Field             string `json:"field,omitempty" doc:"Request field the error concerns"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty" doc:"Seconds to wait before retrying"`
	Details           any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// GetHeaders implements huma.HeadersError. huma adds to the returned map
// (ETag on a 304), so it is never nil.
func (e *APIError) GetHeaders() http.Header {
	if e.headers == nil {
		e.headers = http.Header{}
	}
	return e.headers
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return fromDomain(domainErr)
			}

			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				if de, ok := store.ToDomain(storeErr).(*domainerrors.Error); ok {
					return fromDomain(de)
				}
			}
		}

		apiErr := &APIError{
			status:  status,
			headers: http.Header{},
			Code:    statusToCode(status),
			Message: message,
		}

		// Request validation failures name the offending field.
		var details []*huma.ErrorDetail
		for _, err := range errs {
			var detail *huma.ErrorDetail
			if errors.As(err, &detail) {
				details = append(details, detail)
			}
		}
		if len(details) > 0 {
			apiErr.Field = strings.TrimPrefix(details[0].Location, "body.")
			apiErr.Details = details
		}
		return apiErr
	}
}

func fromDomain(de *domainerrors.Error) *APIError {
	apiErr := &APIError{
		status:  de.HTTPStatus(),
		headers: http.Header{},
		Code:    string(de.Code),
		Message: de.Message,
		Field:   de.Field,
		Details: de.Details,
	}
	if secs := de.RetryAfterSeconds(); secs > 0 {
		apiErr.RetryAfterSeconds = secs
		apiErr.headers.Set("Retry-After", strconv.Itoa(secs))
	}
	return apiErr
}

// toAPIError converts any error returned by a service into a huma status
// error, so headers and status survive regardless of how huma unwraps it.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return err
	}
	return huma.NewError(http.StatusInternalServerError, "internal error", err)
}

// rejection shapes a failed submission. Validation failures keep their own
// status; anything else is reported as not accepted as well.
func rejection(err error) error {
	converted := toAPIError(err)
	var apiErr *APIError
	if errors.As(converted, &apiErr) {
		accepted := false
		apiErr.Accepted = &accepted
		apiErr.Reason = apiErr.Message
	}
	return converted
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeMalformedInput)
	case http.StatusUnauthorized:
		return string(domainerrors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeStoreUnavailable)
	default:
		return string(domainerrors.CodeInternal)
	}
}
