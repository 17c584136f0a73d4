package retrylimit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type statusErr struct {
	code int
}

func (e *statusErr) Error() string   { return "status error" }
func (e *statusErr) StatusCode() int { return e.code }

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		RateLimitDelay: time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestWithRetrySucceedsAfterTransientErrors(t *testing.T) {
	attempts := 0
	err := WithRetryConfig(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil, fastConfig())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetryConfig(context.Background(), func() error {
		attempts++
		return errors.New("always failing")
	}, nil, fastConfig())
	if err == nil {
		t.Fatalf("expected an error")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "max attempts (3) exceeded") {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(err.Error(), "always failing") {
		t.Fatalf("last error must be wrapped, got %v", err)
	}
}

func TestWithRetryFatalStopsImmediately(t *testing.T) {
	attempts := 0
	fatal := &FatalError{Err: errors.New("broken payload")}
	err := WithRetryConfig(context.Background(), func() error {
		attempts++
		return fatal
	}, nil, fastConfig())
	if !errors.Is(err, fatal) {
		t.Fatalf("expected the fatal error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("fatal error must not be retried, got %d attempts", attempts)
	}
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetryConfig(ctx, func() error {
		t.Fatalf("fn must not run with a dead context")
		return nil
	}, nil, fastConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithRetryRateLimitLowersAdaptiveRate(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1, 20, 1, 0.5)
	attempts := 0
	err := WithRetryConfig(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return &statusErr{code: 429}
		}
		return nil
	}, lim, fastConfig())
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if got := lim.CurrentLimit(); got != 5 {
		t.Fatalf("expected the rate halved to 5, got %v", got)
	}
}

func TestAdaptiveLimiterClampsToBounds(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 4, 1, 0.25)

	lim.RateLimited() // 2 * 0.25 clamps at min 1
	if got := lim.CurrentLimit(); got != 1 {
		t.Fatalf("expected clamp at min 1, got %v", got)
	}

	// Success shortly after an error must not raise the rate.
	lim.Success()
	if got := lim.CurrentLimit(); got != 1 {
		t.Fatalf("rate must stay down right after an error, got %v", got)
	}
}
