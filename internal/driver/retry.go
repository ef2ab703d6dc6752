package driver

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// RetryPolicy decides which fetch errors deserve another attempt and how
// long to wait before re-issuing the request. Blocked responses always go
// through the same backoff schedule; the policy only classifies errors.
type RetryPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewRetryPolicy builds a policy with jittered exponential backoff.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		baseDelay: 250 * time.Millisecond,
		maxDelay:  5 * time.Second,
	}
}

// Retryable reports whether the error is worth another attempt. Context
// cancellation and deadline expiry are never retryable: they mean the crawl
// itself is winding down.
func (p *RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the wait duration before attempt n+1, where n is the
// number of retries already performed.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *RetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
