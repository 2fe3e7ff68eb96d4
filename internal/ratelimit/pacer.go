// Package ratelimit paces outbound calls to an external source.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks callers so that at most callsPerMinute calls proceed per
// minute. The token bucket uses the monotonic clock and credits time already
// spent between calls, so a slow caller is not additionally delayed. One
// Pacer per endpoint; it makes no fairness guarantees across goroutines.
type Pacer struct {
	limiter *rate.Limiter
}

// New creates a pacer for the given sustained rate. A non-positive rate
// disables pacing.
func New(callsPerMinute int) *Pacer {
	if callsPerMinute <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	interval := time.Minute / time.Duration(callsPerMinute)
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
