package port

import (
	"context"
	"time"
)

// RateWindow describes the state of a sliding window after a hit.
type RateWindow struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitStore counts hits per key inside a sliding window. Hit records the
// attempt only when it is allowed, and does so atomically with the count.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (RateWindow, error)
}
