// Package ratelimit provides a token-bucket limiter for outbound LLM calls,
// replacing the blocking sleep the reference implementation used to avoid
// hammering the provider after every answer.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with the construction
// parameters the config layer exposes (requests/sec and burst).
type Limiter struct {
	limiter *rate.Limiter
}

// New builds a Limiter allowing perSecond requests/sec with the given burst.
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
