package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindForbidden
	KindThrottled
	KindDelivery
	KindInternal
)

// Error is the application error carried across package boundaries.
// Throttled errors carry a retry hint; everything else is message-only.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	wrapped    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Validation reports malformed input, rejected before any write.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a state transition that lost the race. Expected under
// concurrency, not a defect.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated reports a missing or invalid credential.
func Unauthenticated(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthenticated, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an authenticated caller lacking a required permission.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Throttled reports a rate-limit denial with a retry hint.
func Throttled(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindThrottled,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// Delivery reports a webhook delivery failure. Recorded, never surfaced to
// the caller that triggered the dispatch.
func Delivery(err error) *Error {
	return &Error{Kind: KindDelivery, Message: "webhook delivery failed", wrapped: err}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", wrapped: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// RetryAfterOf returns the retry hint carried by a throttled error.
func RetryAfterOf(err error) time.Duration {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.RetryAfter
	}
	return 0
}
