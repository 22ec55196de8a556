package worker

import (
	"context"
	"math"
	"time"
)

// RetryPolicy describes how long a loop backs off after consecutive failures.
type RetryPolicy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the pause after the given number of consecutive failures (1-based).
// A factor of 1 gives a constant interval.
func (r RetryPolicy) NextDelay(failures int) time.Duration {
	failures = max(failures, 1)
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(failures-1)))
	if r.MaxDelay > 0 && (d > r.MaxDelay || d <= 0) {
		return r.MaxDelay
	}
	if d <= 0 {
		return initial
	}
	return d
}

// Wait blocks for d or until ctx is done. It reports whether the full delay elapsed.
func Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
