// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum spacing between calls to one external service.
// It is safe for concurrent use; callers sharing a Throttle are serialized
// to at most one call per interval.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns a Throttle allowing one call per interval. A zero or
// negative interval disables throttling.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
