package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Retry policy for model calls. Only resource exhaustion (quota / 429) is
// retried; other failures surface immediately. Backoff is exponential with
// full jitter, capped.
const (
	streamAttempts = 5
	jsonAttempts   = 3

	backoffBase = time.Second
	backoffCap  = 60 * time.Second
)

// isResourceExhausted reports whether err is a quota / rate-limit failure.
// The genai SDK surfaces these as APIError with HTTP 429; the string check
// covers errors wrapped by transport layers that drop the type.
func isResourceExhausted(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "429")
}

// backoffDelay returns the full-jitter delay for attempt (0-based).
func backoffDelay(attempt int) time.Duration {
	ceiling := min(backoffCap, backoffBase<<attempt)
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}

// withRetry runs fn up to attempts times, sleeping between attempts on
// resource exhaustion only.
func withRetry[T any](ctx context.Context, logger *slog.Logger, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := range attempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isResourceExhausted(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := backoffDelay(attempt)
		logger.Warn("model call exhausted quota, backing off",
			"attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("canceled during retry backoff: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("model call failed after %d attempts: %w", attempts, lastErr)
}
