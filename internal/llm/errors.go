// Error taxonomy and retry classification for provider calls.

package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind buckets every failure surfaced by the core.
type ErrorKind string

const (
	ErrInvalidArgument     ErrorKind = "invalid_argument"
	ErrCommandNotFound     ErrorKind = "command_not_found"
	ErrOperationNotAllowed ErrorKind = "operation_not_allowed"
	ErrResourceNotFound    ErrorKind = "resource_not_found"
	ErrProvider            ErrorKind = "provider_error"
	ErrCancelled           ErrorKind = "cancelled"
	ErrInternal            ErrorKind = "internal_error"
)

// Error wraps a failure with its kind plus provider metadata when the
// failure came from a vendor HTTP or stream call.
type Error struct {
	Kind       ErrorKind
	Err        error
	Code       string // vendor error code if known
	Retryable  bool
	HTTPStatus int
	RetryAfter string // Retry-After header value if present
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified error.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ProviderError creates a provider failure with retryability metadata.
func ProviderError(err error, code string, retryable bool) *Error {
	return &Error{Kind: ErrProvider, Err: err, Code: code, Retryable: retryable}
}

// KindOf returns the kind of err, or ErrInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternal
}

// RetryClass indicates whether an error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"
	RetryClassMaybe        RetryClass = "maybe"
	RetryClassNonRetryable RetryClass = "non_retryable"
)

// ClassifyProviderError classifies an error from a vendor call for the
// retry loop. Rate limits and server errors retry; auth and validation
// failures never do.
func ClassifyProviderError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	var e *Error
	if errors.As(err, &e) {
		switch {
		case e.Kind == ErrCancelled:
			return RetryClassNonRetryable
		case e.Retryable:
			return RetryClassRetryable
		case e.HTTPStatus == 429 || e.HTTPStatus >= 500:
			return RetryClassRetryable
		case e.HTTPStatus == 401 || e.HTTPStatus == 403 || e.HTTPStatus == 400:
			return RetryClassNonRetryable
		}
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return RetryClassRetryable
	}
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "overloaded") {
		return RetryClassRetryable
	}
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") {
		return RetryClassMaybe
	}
	if strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "context canceled") {
		return RetryClassNonRetryable
	}

	return RetryClassMaybe
}
