package orchestrator

import (
	"context"

	"golang.org/x/time/rate"
)

// Default rate limiter configuration, sized for the MGN API's sustained
// account/region call quota
const (
	DefaultCallsPerSecond = 10.0
	DefaultBurst          = 20
)

// RateLimiter is a token-bucket gate shared by every worker in the process.
// All concurrent batches draw from the same bucket so the upstream account
// quota is respected no matter how many batches are running.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter with the given sustained call rate
// and burst size
func NewRateLimiter(callsPerSecond float64, burst int) *RateLimiter {
	if callsPerSecond <= 0 {
		callsPerSecond = DefaultCallsPerSecond
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst),
	}
}

// Acquire blocks until a token is available or the context is cancelled.
// On cancellation the token is not consumed.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
