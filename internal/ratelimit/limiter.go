package ratelimit

import "context"

// RateLimiter bounds throughput per scope across all replicas.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	// Wait blocks until a slot in scope is free or ctx is done.
	Wait(ctx context.Context, scope string) error
}
