package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/ternarybob/arbor"
)

// retryPolicy is the HTTP fetcher's exponential-backoff retry policy.
// Grounded on the teacher's internal/services/crawler/retry.go
// RetryPolicy: same attempt/backoff/jitter shape, narrowed to the status
// codes and error kinds the spec's Fetcher contract actually needs to
// retry (§7 tier 1, "retries with exponential backoff up to maxRetries").
type retryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	RetryableStatus   []int
}

func newRetryPolicy(maxAttempts int) *retryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &retryPolicy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        15 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableStatus:   []int{408, 429, 500, 502, 503, 504},
	}
}

func (p *retryPolicy) shouldRetry(attempt, statusCode int, err error) bool {
	if attempt >= p.MaxAttempts-1 {
		return false
	}
	if statusCode > 0 {
		for _, c := range p.RetryableStatus {
			if c == statusCode {
				return true
			}
		}
		return false
	}
	if err != nil {
		return isRetryableError(err)
	}
	return false
}

func (p *retryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff) * pow(p.BackoffMultiplier, float64(attempt))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	jitter := d * 0.25 * (rand.Float64()*2 - 1)
	d += jitter
	if d < 0 {
		d = float64(p.InitialBackoff)
	}
	return time.Duration(d)
}

func pow(base, exp float64) float64 {
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// executeWithRetry runs fn, retrying per p until it returns a
// non-retryable outcome or the attempt budget is exhausted. fn returns the
// HTTP status code it observed (0 if the failure was transport-level).
func executeWithRetry(ctx context.Context, logger arbor.ILogger, p *retryPolicy, fn func() (int, error)) (int, error) {
	var lastErr error
	var status int

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		status, lastErr = fn()
		if lastErr == nil && !p.isRetryableStatusOnly(status) {
			return status, nil
		}
		if !p.shouldRetry(attempt, status, lastErr) {
			return status, lastErr
		}

		backoff := p.backoff(attempt)
		logger.Debug().
			Int("attempt", attempt+1).
			Int("status_code", status).
			Err(lastErr).
			Dur("backoff", backoff).
			Msg("retrying fetch after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return status, ctx.Err()
		case <-timer.C:
		}
	}
	return status, lastErr
}

func (p *retryPolicy) isRetryableStatusOnly(status int) bool {
	for _, c := range p.RetryableStatus {
		if c == status {
			return true
		}
	}
	return false
}
