package trader

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Governor spaces out calls to the exchange. Every external call sites
// Throttle first; centralizing the delay keeps the interval tunable and lets
// tests run with a zero interval.
type Governor struct {
	limiter *rate.Limiter
}

func NewGovernor(interval time.Duration) *Governor {
	if interval <= 0 {
		return &Governor{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Governor{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Throttle blocks until the minimum interval since the previous call has
// elapsed, or the context is cancelled.
func (g *Governor) Throttle(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
