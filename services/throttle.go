package services

import "context"

// Throttle limits how often something may happen for a key. Check runs
// before the action and fails with ErrRateLimited once the key is over its
// limit. Hit counts one occurrence.
type Throttle interface {
	Check(ctx context.Context, key string) error
	Hit(ctx context.Context, key string)
}

// NopThrottle never limits.
type NopThrottle struct{}

// Check implements Throttle.
func (NopThrottle) Check(context.Context, string) error { return nil }

// Hit implements Throttle.
func (NopThrottle) Hit(context.Context, string) {}
