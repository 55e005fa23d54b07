package searchads

import (
	"context"
	"math"
	"strings"
	"time"
)

// simpleRetry retries transient failures with exponential backoff. Client
// errors (auth, 4xx other than 429) are not retried.
type simpleRetry struct {
	maxRetries int
	retryDelay time.Duration
	multiplier float64
}

func newSimpleRetry(maxRetries int, retryDelay time.Duration) *simpleRetry {
	return &simpleRetry{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		multiplier: 2.0,
	}
}

func (sr *simpleRetry) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= sr.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == sr.maxRetries {
			break
		}
		if !isRetryable(err) {
			return err
		}

		delay := time.Duration(float64(sr.retryDelay) * math.Pow(sr.multiplier, float64(attempt)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") {
		return false
	}
	if strings.Contains(msg, "400") || strings.Contains(msg, "404") {
		return false
	}

	// Network errors, timeouts, 5xx and rate limits are worth retrying.
	return true
}
