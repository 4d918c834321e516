// -----------------------------------------------------------------------
// Retry - Single parameterized retry/backoff/timeout decorator
// -----------------------------------------------------------------------

package common

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
)

// BackoffMode selects how the delay grows between attempts.
type BackoffMode int

const (
	// BackoffExponential grows the delay as base * 2^attempt (attempt starting at 0).
	BackoffExponential BackoffMode = iota
	// BackoffLinear grows the delay as base * attemptNumber (attempt starting at 1).
	BackoffLinear
)

// RetryConfig parameterizes Retry. Per-call-site differences (attempt counts,
// delays, what counts as retryable) are expressed here, not as duplicated loops.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first (default 3).
	MaxAttempts int
	// BaseDelay is the backoff base (default 1s).
	BaseDelay time.Duration
	// MaxDelay caps the computed delay (0 = uncapped).
	MaxDelay time.Duration
	// Backoff selects exponential or linear growth.
	Backoff BackoffMode
	// Timeout bounds each individual attempt (0 = no per-attempt timeout).
	Timeout time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// Delay computes the wait before attempt n+1 (n is the zero-based attempt that just failed).
func (c RetryConfig) Delay(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	var d time.Duration
	switch c.Backoff {
	case BackoffLinear:
		d = base * time.Duration(attempt+1)
	default:
		d = base << uint(attempt)
	}

	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Retry runs fn under the configured attempt/backoff/timeout policy.
// A per-attempt timeout is treated exactly like any other failure: if the
// classifier considers it retryable the next attempt proceeds after backoff.
// The last error is returned once attempts are exhausted.
func Retry(ctx context.Context, logger arbor.ILogger, op string, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}

		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := cfg.Delay(attempt)
		if logger != nil {
			logger.Warn().
				Err(err).
				Str("operation", op).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Str("backoff", delay.String()).
				Msg("Operation failed, retrying after backoff")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
