package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/mab0130/MGNBot/internal/mgn"
)

// ErrorClass is the retry classification of a failed adapter call
type ErrorClass int

// Error classes
const (
	// ClassTransient marks errors worth retrying: throttling, transient
	// network or service faults
	ClassTransient ErrorClass = iota
	// ClassTerminal marks errors that will not succeed on retry: validation
	// failures, ineligible servers, remote job failures and item timeouts
	ClassTerminal
)

// String returns the string representation of the error class
func (c ErrorClass) String() string {
	if c == ClassTerminal {
		return "terminal"
	}
	return "transient"
}

// ErrNoCompletion is returned when the remote side never signals completion
// within the per-item deadline. It is always classified terminal.
var ErrNoCompletion = errors.New("no completion signal within item deadline")

// jobFailedError wraps the failure reason reported by a completed remote job
type jobFailedError struct {
	reason string
}

func (e *jobFailedError) Error() string {
	return fmt.Sprintf("remote job failed: %s", e.reason)
}

// RetryPolicy decides whether a failed call is retried and how long to back
// off between attempts
type RetryPolicy struct {
	// MaxRetries is the number of retries beyond the first attempt
	MaxRetries int
	// BaseDelay is the backoff before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration
}

// Default retry configuration
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 30 * time.Second
)

// DefaultRetryPolicy returns the retry policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Classify maps an adapter error to its retry class
func (p RetryPolicy) Classify(err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}

	if errors.Is(err, ErrNoCompletion) {
		return ClassTerminal
	}

	// Cancellation is not worth retrying; the caller is gone.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTerminal
	}

	var jobErr *jobFailedError
	if errors.As(err, &jobErr) {
		return ClassTerminal
	}

	var apiErr *mgn.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsThrottle() || apiErr.IsServerFault() {
			return ClassTransient
		}
		if apiErr.IsValidation() {
			return ClassTerminal
		}
		// Unrecognized API codes retry like any other unknown error.
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	// Unclassified errors get the benefit of the doubt; MaxRetries still
	// bounds how often the item is resubmitted.
	return ClassTransient
}

// NextDelay returns the backoff before the given retry attempt, exponential
// in the attempt number with up to 25% jitter, capped at MaxDelay. Attempt
// counting starts at 1 for the first completed submission.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay << uint(attempt-1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
