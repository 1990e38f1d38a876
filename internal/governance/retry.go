package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/domain"
)

// ErrAttemptsExhausted is returned when all retry attempts have been used up.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// RetryConfig defines retry behavior for node execution.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	// (1 = no retries).
	MaxAttempts int
	// BaseDelay is the backoff unit. The sleep before attempt N+1 is
	// BaseDelay * N, so waits grow linearly: 2s, 4s, 6s, ...
	BaseDelay time.Duration
}

// DefaultRetryConfig returns the standard node retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// RetryPolicy decides whether a failed node attempt gets another try and
// how long to wait before it.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy with the given configuration.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	return &RetryPolicy{config: config}
}

// Config returns a copy of the current retry configuration.
func (rp *RetryPolicy) Config() RetryConfig {
	return rp.config
}

// MaxAttempts returns the attempt ceiling.
func (rp *RetryPolicy) MaxAttempts() int {
	return rp.config.MaxAttempts
}

// ShouldRetry reports whether another attempt is allowed after attempt
// (1-based) failed with err. Non-retryable failures such as a missing
// upstream input are final regardless of the attempt count.
func (rp *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= rp.config.MaxAttempts {
		return false
	}
	return domain.Retryable(err)
}

// Backoff returns the delay before the attempt following attempt (1-based).
func (rp *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return rp.config.BaseDelay * time.Duration(attempt)
}

// Wait sleeps for the backoff owed after attempt, honoring context
// cancellation.
func (rp *RetryPolicy) Wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(rp.Backoff(attempt)):
		return nil
	}
}

// ExecuteWithRetry runs fn until it succeeds, exhausts the attempt budget,
// fails non-retryably, or the context is cancelled. fn receives the 1-based
// attempt number. Returns the number of attempts made and the final error.
//
// An exhausted budget wraps both ErrAttemptsExhausted and the last failure,
// so callers can match either with errors.Is.
func (rp *RetryPolicy) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= rp.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return attempt - 1, ctx.Err()
		default:
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		if !rp.ShouldRetry(lastErr, attempt) {
			if attempt >= rp.config.MaxAttempts && domain.Retryable(lastErr) {
				return attempt, fmt.Errorf("%w: %w", ErrAttemptsExhausted, lastErr)
			}
			return attempt, lastErr
		}

		if err := rp.Wait(ctx, attempt); err != nil {
			return attempt, err
		}
	}

	return rp.config.MaxAttempts, fmt.Errorf("%w: %w", ErrAttemptsExhausted, lastErr)
}
