package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrRequestRejected    = errors.New("request rejected")
	ErrTransientPoll      = errors.New("transient poll error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeoutExceeded    = errors.New("timeout exceeded")
	ErrCancelled          = errors.New("cancelled")
	ErrIOFailure          = errors.New("io failure")
	ErrConfiguration      = errors.New("configuration error")
	ErrJobFailed          = errors.New("job failed")
	ErrProviderFailure    = errors.New("provider failure")
)

// RemoteError carries the HTTP status and message returned by a remote
// service. It matches its Kind with errors.Is.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Kind != nil {
		fmt.Fprintf(&b, " (%s)", e.Kind)
	}
	return b.String()
}

func (e *RemoteError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ClassifyStatus maps an HTTP status code to the error taxonomy. Timeouts,
// throttling and 5xx are ErrServiceUnavailable; any other 4xx is
// ErrRequestRejected.
func ClassifyStatus(code int) error {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return ErrServiceUnavailable
	case code >= http.StatusInternalServerError:
		return ErrServiceUnavailable
	case code >= http.StatusBadRequest:
		return ErrRequestRejected
	default:
		return nil
	}
}

// Rejected builds a client-side RequestRejected error.
func Rejected(op, message string) error {
	return &RemoteError{Op: op, Message: message, Kind: ErrRequestRejected}
}

// ContextError maps a failure caused by ctx onto the taxonomy: a deadline,
// including a rate limiter refusing to wait past it, is ErrTimeoutExceeded
// and anything else is ErrCancelled. The original error stays wrapped.
func ContextError(ctx context.Context, op string, err error) error {
	kind := ErrCancelled
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = ErrTimeoutExceeded
	case ctx.Err() == nil:
		if _, ok := ctx.Deadline(); ok {
			kind = ErrTimeoutExceeded
		}
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
