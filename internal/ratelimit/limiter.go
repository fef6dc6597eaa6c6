// Package ratelimit implements the fixed-window request ceiling applied to
// lead submissions per client IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLimited is returned by Check when the window's ceiling was reached.
var ErrLimited = errors.New("ratelimit: limit exceeded")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// RetryAfter is the time left in the window, rounded up to a whole second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	left := d.ResetAt.Sub(now)
	if left <= 0 {
		return 0
	}
	if rounded := left.Truncate(time.Second); rounded != left {
		return rounded + time.Second
	}
	return left
}

// Limiter counts requests per key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LimitedError carries the rejected decision.
type LimitedError struct {
	Decision Decision
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("ratelimit: %d/%d requests, resets at %s", e.Decision.Count, e.Decision.Limit, e.Decision.ResetAt.Format(time.RFC3339))
}

func (e *LimitedError) Unwrap() error { return ErrLimited }

// Check calls Allow and converts a rejection into a *LimitedError.
func Check(ctx context.Context, l Limiter, key string) (Decision, error) {
	d, err := l.Allow(ctx, key)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		return d, &LimitedError{Decision: d}
	}
	return d, nil
}
