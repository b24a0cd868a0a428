package ratelimit

import "context"

// RateLimiter caps how many operations may start per second within a scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}

// ScopeItemProcessing is the scope shared by every item processing task.
const ScopeItemProcessing = "items"
