package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/job-radar/internal/fetch"
)

// Kind classifies a source failure for the retry and circuit logic.
type Kind string

const (
	// Transient failures (timeouts, network errors, 5xx) are retried.
	Transient Kind = "transient"
	// Permanent failures (4xx, unparseable responses, missing credentials)
	// skip the source for this cycle.
	Permanent Kind = "permanent"
	// RateLimited failures are retried after the server-requested delay.
	RateLimited Kind = "rate_limited"
)

// Error is a failure reported by a source adapter.
type Error struct {
	Source     string
	Kind       Kind
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("source %s: %s: %s", e.Source, e.Kind, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Temporary reports whether the failure is worth retrying.
func (e *Error) Temporary() bool {
	return e.Kind == Transient || e.Kind == RateLimited
}

// RetryAfterHint returns the server-requested delay for rate-limited
// failures. The duration may be zero when the server sent none.
func (e *Error) RetryAfterHint() (time.Duration, bool) {
	return e.RetryAfter, e.Kind == RateLimited
}

// NewTransient builds a retryable error.
func NewTransient(source, message string, cause error) *Error {
	return &Error{Source: source, Kind: Transient, Message: message, Cause: cause}
}

// NewPermanent builds a non-retryable error.
func NewPermanent(source, message string, cause error) *Error {
	return &Error{Source: source, Kind: Permanent, Message: message, Cause: cause}
}

// ClassifyHTTPStatus maps a response status to a failure kind. A zero status
// means no response arrived and is treated as transient.
func ClassifyHTTPStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return RateLimited
	case code == 0,
		code == http.StatusRequestTimeout,
		code >= 500 && code != http.StatusNotImplemented:
		return Transient
	default:
		return Permanent
	}
}

// FromFetch converts a fetch failure into a classified *Error. Callers check
// their own context first so that shutdown is not reported as a failure.
func FromFetch(source string, err error) error {
	if err == nil {
		return nil
	}

	var fe *fetch.Error
	if !errors.As(err, &fe) {
		return NewTransient(source, "request failed", err)
	}
	if fe.Message == fetch.MsgInvalidURL {
		return NewPermanent(source, "invalid URL "+fe.URL, fe.Cause)
	}
	return &Error{
		Source:     source,
		Kind:       ClassifyHTTPStatus(fe.StatusCode),
		StatusCode: fe.StatusCode,
		RetryAfter: fe.RetryAfter,
		Message:    fe.Message,
		Cause:      fe.Cause,
	}
}

// KindOf returns the failure kind of err. Unclassified errors are treated as
// permanent so they are not retried blindly.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	return Permanent
}

// IsTransient reports whether err is a transient source failure.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == Transient
}

// IsPermanent reports whether err is a permanent source failure.
func IsPermanent(err error) bool {
	return err != nil && KindOf(err) == Permanent
}

// IsRateLimited reports whether err is a rate-limit response.
func IsRateLimited(err error) bool {
	return err != nil && KindOf(err) == RateLimited
}
