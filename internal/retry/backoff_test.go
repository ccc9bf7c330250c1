package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", config.MaxRetries)
	}

	if config.BaseDelay != 500*time.Millisecond {
		t.Errorf("Expected BaseDelay=500ms, got %v", config.BaseDelay)
	}

	if config.MaxDelay != 10*time.Second {
		t.Errorf("Expected MaxDelay=10s, got %v", config.MaxDelay)
	}

	if config.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier=2.0, got %f", config.Multiplier)
	}

	if !config.Jitter {
		t.Error("Expected Jitter=true")
	}
}

func TestWithBackoff_Success(t *testing.T) {
	config := Config{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false, // Disable jitter for predictable testing
		LogRetries: false, // Disable logging for cleaner test output
	}

	result := WithBackoff(context.Background(), config, func() error {
		return nil // Success on first attempt
	})

	if !result.Success {
		t.Error("Expected success=true")
	}

	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}

	if result.LastError != nil {
		t.Errorf("Expected no error, got %v", result.LastError)
	}
}

func TestWithBackoff_EventualSuccess(t *testing.T) {
	config := Config{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false,
		LogRetries: false,
	}

	attempts := 0
	result := WithBackoff(context.Background(), config, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if !result.Success {
		t.Error("Expected success=true")
	}

	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
}

func TestWithBackoff_NonRetryableFailsFast(t *testing.T) {
	config := Config{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false,
		LogRetries: false,
	}

	permanent := errors.New("unexpected status 404: not found")
	attempts := 0
	result := WithBackoff(context.Background(), config, func() error {
		attempts++
		return permanent
	})

	if result.Success {
		t.Error("Expected success=false")
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}

	if !errors.Is(result.LastError, permanent) {
		t.Errorf("Expected last error to be the permanent error, got %v", result.LastError)
	}
}

func TestWithBackoff_Exhaustion(t *testing.T) {
	config := Config{
		MaxRetries: 2,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   20 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false,
		LogRetries: false,
	}

	attempts := 0
	result := WithBackoff(context.Background(), config, func() error {
		attempts++
		return errors.New("service unavailable")
	})

	if result.Success {
		t.Error("Expected success=false")
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestWithBackoff_ContextCancellation(t *testing.T) {
	config := Config{
		MaxRetries: 5,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   200 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false,
		LogRetries: false,
	}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	result := WithBackoff(ctx, config, func() error {
		attempts++
		if attempts == 1 {
			cancel()
		}
		return errors.New("connection refused")
	})

	if result.Success {
		t.Error("Expected success=false")
	}

	if !errors.Is(result.LastError, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", result.LastError)
	}
}

func TestCalculateDelay(t *testing.T) {
	config := Config{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
		Jitter:     false,
	}

	if delay := calculateDelay(config, 0); delay != 100*time.Millisecond {
		t.Errorf("Expected 100ms for attempt 0, got %v", delay)
	}

	if delay := calculateDelay(config, 1); delay != 200*time.Millisecond {
		t.Errorf("Expected 200ms for attempt 1, got %v", delay)
	}

	// Capped at MaxDelay
	if delay := calculateDelay(config, 10); delay != 1*time.Second {
		t.Errorf("Expected cap at 1s, got %v", delay)
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Error("nil error should not be retryable")
	}

	retryable := []string{
		"connection refused",
		"dial tcp: Connection Reset by peer",
		"unexpected status 503: service unavailable",
		"unexpected status 429: too many requests",
	}
	for _, msg := range retryable {
		if !IsRetryableError(errors.New(msg)) {
			t.Errorf("Expected %q to be retryable", msg)
		}
	}

	permanent := []string{
		"unexpected status 404: not found",
		"unexpected status 403: forbidden",
		"invalid request body",
	}
	for _, msg := range permanent {
		if IsRetryableError(errors.New(msg)) {
			t.Errorf("Expected %q to be permanent", msg)
		}
	}
}
