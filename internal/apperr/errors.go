package apperr

import (
	"errors"
	"net/http"
	"time"
)

// Error category codes surfaced to the presentation layer.
const (
	CodeAuthRequired        = "auth_required"
	CodeAuthorizationDenied = "authorization_denied"
	CodeRefreshFailed       = "refresh_failed"
	CodeRateLimited         = "rate_limited"
	CodeUpstreamTimeout     = "upstream_timeout"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeStorageUnavailable  = "storage_unavailable"
	CodeNotFound            = "not_found"
	CodeBadRequest          = "bad_request"
	CodeInternal            = "internal_error"
)

type Error struct {
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

type RateLimitError struct {
	Code       string
	Message    string
	StatusCode int
	Cause      error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

func AuthRequired() *Error {
	return &Error{
		Code:       CodeAuthRequired,
		Message:    "please connect your Strava account to continue",
		StatusCode: http.StatusUnauthorized,
	}
}

func AuthorizationDenied(message string, cause error) *Error {
	return &Error{Code: CodeAuthorizationDenied, Message: message, StatusCode: http.StatusUnauthorized, Cause: cause}
}

// RefreshFailed marks a rejected refresh token. Fatal to the session:
// the only way forward is a full re-authorization.
func RefreshFailed(cause error) *Error {
	return &Error{
		Code:       CodeRefreshFailed,
		Message:    "unable to refresh authorization, please reconnect to Strava",
		StatusCode: http.StatusUnauthorized,
		Cause:      cause,
	}
}

func RateLimited(retryAfter time.Duration, cause error) *RateLimitError {
	return &RateLimitError{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded, please wait before making more requests",
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Cause:      cause,
	}
}

func UpstreamTimeout(cause error) *Error {
	return &Error{
		Code:       CodeUpstreamTimeout,
		Message:    "request to Strava timed out, please try again",
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

func UpstreamUnavailable(cause error) *Error {
	return &Error{
		Code:       CodeUpstreamUnavailable,
		Message:    "Strava is temporarily unavailable, please try again later",
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

func StorageUnavailable(cause error) *Error {
	return &Error{
		Code:       CodeStorageUnavailable,
		Message:    "local storage is unavailable",
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, StatusCode: http.StatusNotFound}
}

func BadRequest(message string) *Error {
	return &Error{Code: CodeBadRequest, Message: message, StatusCode: http.StatusBadRequest}
}

func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, StatusCode: http.StatusInternalServerError, Cause: cause}
}

func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func AsRateLimitError(err error) *RateLimitError {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr
	}
	return nil
}
