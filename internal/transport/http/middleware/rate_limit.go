package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/port"
)

const (
	rateLimitProblemType  = "https://directory.arklim.dev/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

type ruleResult struct {
	rule       RateLimitRule
	window     port.RateWindow
	retryAfter time.Duration
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// ActorIdentifier scopes limits to the authenticated actor. It must run after RequireAuth.
func ActorIdentifier() IdentifierFunc {
	return GetAuthenticatedUserID
}

// RateLimit returns a Gin middleware enforcing the provided rules. Store
// failures fail open so a degraded Redis never blocks the directory.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var best *ruleResult

		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			key := fmt.Sprintf("%s:%s", rule.Name, identifier)
			window, err := rl.store.Hit(c.Request.Context(), key, rule.Limit, rule.Window, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed", zap.String("rule", rule.Name), zap.Error(err))
				continue
			}

			res := ruleResult{
				rule:       rule,
				window:     window,
				retryAfter: max(window.ResetAt.Sub(now), 0),
			}

			if !window.Allowed {
				rl.applyHeaders(c, res)
				rl.respondRateLimited(c, res)
				return
			}

			if best == nil || tighter(res, *best) {
				best = &res
			}
		}

		if best != nil {
			rl.applyHeaders(c, *best)
		}

		c.Next()
	}
}

func tighter(candidate, current ruleResult) bool {
	if candidate.window.Remaining != current.window.Remaining {
		return candidate.window.Remaining < current.window.Remaining
	}
	return candidate.window.ResetAt.Before(current.window.ResetAt)
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, res ruleResult) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(res.rule.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.window.Remaining, 0)))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.window.ResetAt.Unix(), 10))

	if !res.window.Allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(res.retryAfter)))
	}
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, res ruleResult) {
	seconds := retrySeconds(res.retryAfter)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	rl.logger.Info("rate limit exceeded",
		zap.String("rule", res.rule.Name),
		zap.Int("count", res.window.Count),
		zap.String("trace_id", GetTraceID(c)),
	)

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}
