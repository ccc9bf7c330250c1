package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior with exponential backoff
type Config struct {
	MaxRetries int           `json:"max_retries"` // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration `json:"base_delay"`  // Base delay between retries (default: 500ms)
	MaxDelay   time.Duration `json:"max_delay"`   // Maximum delay between retries (default: 10s)
	Multiplier float64       `json:"multiplier"`  // Exponential backoff multiplier (default: 2.0)
	Jitter     bool          `json:"jitter"`      // Add random jitter to prevent thundering herd (default: true)
	LogRetries bool          `json:"log_retries"` // Whether to log retry attempts (default: true)
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           `json:"attempts"`       // Total number of attempts made
	TotalDuration time.Duration `json:"total_duration"` // Total time spent on all attempts
	LastError     error         `json:"-"`              // Last error encountered
	Success       bool          `json:"success"`        // Whether the operation eventually succeeded
}

// DefaultConfig returns a retry configuration tuned for comment-store reads.
// Mutations are never retried, so the delays stay short.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
		LogRetries: true,
	}
}

// WithBackoff executes an operation with exponential backoff retry logic.
// Only errors IsRetryableError recognizes trigger another attempt; anything
// else fails immediately.
func WithBackoff(ctx context.Context, config Config, operation func() error) Result {
	startTime := time.Now()

	result := Result{}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := operation()
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)
			if config.LogRetries && attempt > 0 {
				log.Debug().
					Int("attempts", result.Attempts).
					Dur("total_duration", result.TotalDuration).
					Msg("operation succeeded after retries")
			}
			return result
		}

		result.LastError = err

		if attempt >= config.MaxRetries || !IsRetryableError(err) {
			result.TotalDuration = time.Since(startTime)
			if config.LogRetries {
				log.Debug().Err(err).
					Int("attempts", result.Attempts).
					Msg("operation failed, giving up")
			}
			return result
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}

		delay := calculateDelay(config, attempt)
		if config.LogRetries {
			log.Debug().Err(err).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("operation failed, retrying after backoff")
		}

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		case <-time.After(delay):
			// Continue to next attempt
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay calculates the delay for the next retry attempt using exponential backoff
func calculateDelay(config Config, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	// Up to 10% random jitter in either direction
	if config.Jitter {
		jitterRange := delay * 0.1
		jitter := (rand.Float64() - 0.5) * 2 * jitterRange
		delay += jitter

		if delay < 0 {
			delay = float64(config.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// IsRetryableError determines if an error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Network-related errors that are typically retryable
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"no such host",
		"network unreachable",
		"broken pipe",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}
