package crawler

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"slices"
	"time"
)

// RetryPolicy decides whether a failed fetch is tried again and how long
// to wait before the next attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// Multiplier grows the wait after every attempt.
	Multiplier float64

	// RetryableStatusCodes lists statuses worth another attempt.
	RetryableStatusCodes []int
}

// NewRetryPolicy returns a policy allowing maxRetries retries after the
// first attempt. Timeouts, rate limiting and server errors are retried.
func NewRetryPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    max(maxRetries, 0) + 1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		RetryableStatusCodes: []int{
			408, // Request Timeout
			429, // Too Many Requests
			500, // Internal Server Error
			502, // Bad Gateway
			503, // Service Unavailable
			504, // Gateway Timeout
		},
	}
}

// ShouldRetry reports whether another attempt should follow attempt
// (zero-based) that failed with err.
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt+1 >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode != 0 {
		return slices.Contains(p.RetryableStatusCodes, fe.StatusCode)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Backoff returns the wait before the attempt following attempt (zero-based),
// with up to 25% jitter either way.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for range attempt {
		backoff *= p.Multiplier
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	backoff += backoff * 0.25 * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need a secure source
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// Do runs fn until it succeeds, the policy gives up or ctx is done.
// It returns the last error from fn, or ctx.Err() if cancelled while waiting.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if !p.ShouldRetry(attempt, err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
