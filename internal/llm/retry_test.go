package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/ragline/ragline/internal/log"
)

func TestIsResourceExhausted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api error 429", genai.APIError{Code: http.StatusTooManyRequests}, true},
		{"api error 500", genai.APIError{Code: http.StatusInternalServerError}, false},
		{"wrapped api error 429", fmt.Errorf("stream: %w", genai.APIError{Code: 429}), true},
		{"string 429", errors.New("rpc failed with code 429"), true},
		{"string resource_exhausted", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), true},
		{"plain failure", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isResourceExhausted(tt.err); got != tt.want {
				t.Errorf("isResourceExhausted(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	t.Parallel()

	for attempt := range 10 {
		ceiling := min(backoffCap, backoffBase<<attempt)
		for range 50 {
			d := backoffDelay(attempt)
			if d < 0 || d > ceiling {
				t.Fatalf("backoffDelay(%d) = %v, want in [0, %v]", attempt, d, ceiling)
			}
		}
	}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := withRetry(t.Context(), log.NewNop(), 5, func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want \"ok\" after 1", got, calls)
	}
}

func TestWithRetryNonRetryableStops(t *testing.T) {
	t.Parallel()

	fatal := errors.New("invalid argument")
	calls := 0
	_, err := withRetry(t.Context(), log.NewNop(), 5, func() (string, error) {
		calls++
		return "", fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("withRetry() error = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	quota := genai.APIError{Code: http.StatusTooManyRequests}
	calls := 0
	_, err := withRetry(t.Context(), log.NewNop(), 3, func() (int, error) {
		calls++
		return 0, quota
	})
	if err == nil {
		t.Fatal("withRetry() = nil, want error after exhaustion")
	}
	if !errors.Is(err, quota) {
		t.Errorf("withRetry() error = %v, want wrapped quota error", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestWithRetryRecoversAfterQuota(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := withRetry(t.Context(), log.NewNop(), 5, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, genai.APIError{Code: http.StatusTooManyRequests}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := withRetry(ctx, log.NewNop(), 5, func() (int, error) {
		return 0, genai.APIError{Code: http.StatusTooManyRequests}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("withRetry() error = %v, want context.Canceled", err)
	}
}

// Keep the cancellation test fast even when jitter picks a long delay: the
// select in withRetry must observe ctx.Done before time.After fires.
func TestWithRetryCancellationIsPrompt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := withRetry(ctx, log.NewNop(), 5, func() (int, error) {
		return 0, genai.APIError{Code: http.StatusTooManyRequests}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("withRetry() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, want prompt return", elapsed)
	}
}
