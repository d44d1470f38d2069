// Package retry implements exponential backoff for calls to flaky upstreams.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"
)

// Strategy defines exponential backoff retry logic
type Strategy struct {
	MaxAttempts int           // Default: 3
	BaseBackoff time.Duration // Default: 2 seconds
	MaxBackoff  time.Duration // Default: 8 seconds
	Jitter      bool
}

// NewStrategy creates a Strategy with defaults: 3 attempts waiting 2s then 4s
func NewStrategy() *Strategy {
	return &Strategy{
		MaxAttempts: 3,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  8 * time.Second,
	}
}

// Backoff returns the wait after the given failed attempt (1-based): base, 2*base, 4*base...
func (s *Strategy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		attempt = 1
	}
	backoff := s.BaseBackoff << uint(attempt-1)
	if s.MaxBackoff > 0 && backoff > s.MaxBackoff {
		backoff = s.MaxBackoff
	}

	if s.Jitter {
		// ±10%
		if jitterRange := backoff / 10; jitterRange > 0 {
			backoff += time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
		}
	}
	return backoff
}

// IsRetryableStatusCode reports whether an HTTP status warrants another attempt.
// Only 500 and 529 (the "overloaded" status of some model gateways) qualify.
func IsRetryableStatusCode(statusCode int) bool {
	return statusCode == http.StatusInternalServerError || statusCode == 529
}

// IsTimeout reports deadline and network timeout errors
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// Do calls fn until it succeeds, retryable reports false, attempts run out
// or ctx is done. The last error from fn is returned.
func (s *Strategy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, retryable func(error) bool) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || !retryable(lastErr) {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(s.Backoff(attempt)):
		}
	}
	return lastErr
}
