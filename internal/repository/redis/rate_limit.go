// Package redis contains Redis-backed stores for rate limiting and access requests.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arklim/workspace-directory/internal/core/port"
)

// slidingWindowScript trims the window, records the hit when under the limit
// and reports the resulting count and oldest score. Scores are unix millis.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RateLimitRepository persists rate-limit attempts in Redis sorted sets.
type RateLimitRepository struct {
	client    redis.Scripter
	keyPrefix string
}

func NewRateLimitRepository(client redis.Scripter, keyPrefix string) *RateLimitRepository {
	return &RateLimitRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RateLimitRepository) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (port.RateWindow, error) {
	if window <= 0 || limit <= 0 {
		return port.RateWindow{}, errors.New("window and limit must be positive")
	}

	result, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.key(key)},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return port.RateWindow{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(result) != 3 {
		return port.RateWindow{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(result))
	}

	count := int(result[1])
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return port.RateWindow{
		Allowed:   result[0] == 1,
		Count:     count,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(result[2]).Add(window),
	}, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.keyPrefix == "" {
		return identifier
	}
	return r.keyPrefix + ":" + identifier
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
