// -----------------------------------------------------------------------
// LLM Error Taxonomy - classification for retry and fail-fast decisions
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the provider failure taxonomy. Call sites wrap provider
// errors with Classify so the retry decorator and orchestrator can branch on
// errors.Is instead of raw status codes.
var (
	// ErrUnauthorized: bad/expired credentials. Fatal, fail immediately.
	ErrUnauthorized = errors.New("llm: unauthorized")
	// ErrRateLimited: HTTP 429. Retryable with backoff.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrQuotaExhausted: HTTP 402 / billing. Fatal - more attempts won't help.
	ErrQuotaExhausted = errors.New("llm: quota exhausted")
)

// Classify wraps a provider error with the matching sentinel so callers can
// use errors.Is. Unclassified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid x-api-key") || strings.Contains(msg, "authentication"):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "overloaded"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case strings.Contains(msg, "402") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "billing") || strings.Contains(msg, "credit balance"):
		return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	}
	return err
}

// IsRetryable reports whether another attempt is worth making: rate limits
// and timeouts yes; bad credentials and exhausted quota no. Unknown errors
// are retried - transient network failures land here.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrQuotaExhausted) {
		return false
	}
	return true
}

// IsTimeout reports whether the error was a deadline expiry
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// HumanReason converts a classified error into the operator-facing message
// surfaced in the job's structured error, instead of a raw status code.
func HumanReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "AI provider rejected the configured API key - check credentials"
	case errors.Is(err, ErrQuotaExhausted):
		return "AI provider quota exhausted - generation cannot proceed until quota resets"
	case errors.Is(err, ErrRateLimited):
		return "AI provider rate limit persisted through all retries"
	case errors.Is(err, context.DeadlineExceeded):
		return "AI provider call timed out"
	default:
		if err != nil {
			return err.Error()
		}
		return ""
	}
}
