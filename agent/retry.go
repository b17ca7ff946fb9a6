package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls retry behavior for model calls
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Timeout        time.Duration // Overall timeout for all attempts
}

// DefaultRetryConfig returns sensible retry defaults for Gemini rate limits
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Timeout:        5 * time.Minute,
	}
}

// withRetry runs call with exponential backoff on retryable errors.
// When the error text carries an explicit retry delay hint, the hint
// wins over the computed backoff.
func withRetry(ctx context.Context, config RetryConfig, call func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff
			if hint := extractRetryDelay(lastErr); hint > 0 {
				delay = hint
			}
			slog.Debug("waiting before retry", "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("retry wait cancelled or timed out: %w", ctx.Err())
			case <-time.After(delay):
			}

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}

		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("model call cancelled or timed out: %w", ctx.Err())
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
		slog.Warn("model call failed, will retry", "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

// isRetryable reports whether the error looks like a transient quota
// or availability problem worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	markers := []string{
		"resource_exhausted",
		"quota",
		"429",
		"503",
		"rate limit",
		"unavailable",
		"overloaded",
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Matches both "retryDelay:10s" (Gemini API error details) and
// "retry in 12.5s" (human-readable variants).
var retryDelayPattern = regexp.MustCompile(`(?i)retry(?:Delay:|\s+in\s+)(\d+(?:\.\d+)?)s`)

// extractRetryDelay pulls an explicit retry delay out of an error
// message, returning 0 when none is present.
func extractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	match := retryDelayPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(match[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
