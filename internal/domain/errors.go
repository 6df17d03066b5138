package domain

import (
	"errors"
	"fmt"
)

// ErrNoData indicates the provider returned an explicit empty result for
// the requested window. This is not a failure; the caller records a
// zero-row success and leaves the watermark untouched.
var ErrNoData = errors.New("no data available for requested window")

// ErrCancelled indicates cooperative cancellation. No watermark is
// advanced and no partial writes are committed.
var ErrCancelled = errors.New("operation cancelled")

// TransportError wraps a network or HTTP-level failure from a provider.
// Retryable errors (429/403/503, timeouts, decode failures) are retried
// with backoff before the symbol is marked as failed.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying.
func (e *TransportError) Retryable() bool {
	switch e.StatusCode {
	case 0: // network error, timeout, decode failure
		return true
	case 403, 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable transport error.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}
