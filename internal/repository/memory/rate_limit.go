package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arklim/workspace-directory/internal/core/port"
)

// RateLimitStore keeps sliding windows in process memory. Timestamps in each
// window are kept in ascending order.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string][]time.Time)}
}

func (s *RateLimitStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (port.RateWindow, error) {
	if err := ctx.Err(); err != nil {
		return port.RateWindow{}, err
	}
	if window <= 0 || limit <= 0 {
		return port.RateWindow{}, errors.New("window and limit must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := now.Add(-window)
	hits := s.windows[key]
	kept := hits[:0]
	for _, at := range hits {
		if at.After(threshold) {
			kept = append(kept, at)
		}
	}

	allowed := len(kept) < limit
	if allowed {
		kept = append(kept, now)
	}
	if len(kept) == 0 {
		delete(s.windows, key)
	} else {
		s.windows[key] = kept
	}

	oldest := now
	if len(kept) > 0 {
		oldest = kept[0]
	}

	return port.RateWindow{
		Allowed:   allowed,
		Count:     len(kept),
		Remaining: max(limit-len(kept), 0),
		ResetAt:   oldest.Add(window),
	}, nil
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
