package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/repository/memory"
)

type fakeRateLimitStore struct {
	window port.RateWindow
	err    error
	keys   []string
}

func (f *fakeRateLimitStore) Hit(_ context.Context, key string, _ int, _ time.Duration, _ time.Time) (port.RateWindow, error) {
	f.keys = append(f.keys, key)
	return f.window, f.err
}

func newRateLimitedRouter(t *testing.T, store port.RateLimitStore, now time.Time, limit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := gin.New()
	router.Use(limiter.RateLimit(RateLimitRule{
		Name:   "invite",
		Limit:  limit,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "192.0.2.1", true
		},
	}))
	router.POST("/invite", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimiterAllowsWhenBelowLimit(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{window: port.RateWindow{
		Allowed:   true,
		Count:     3,
		Remaining: 2,
		ResetAt:   now.Add(30 * time.Second),
	}}

	router := newRateLimitedRouter(t, store, now, 5)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invite", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected remaining 2, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Reset"); got != strconv.FormatInt(now.Add(30*time.Second).Unix(), 10) {
		t.Fatalf("unexpected reset header %q", got)
	}
	if len(store.keys) != 1 || store.keys[0] != "invite:192.0.2.1" {
		t.Fatalf("unexpected keys %v", store.keys)
	}
}

func TestRateLimiterBlocksWhenLimitExceeded(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{window: port.RateWindow{
		Allowed: false,
		Count:   5,
		ResetAt: now.Add(20 * time.Second),
	}}

	router := newRateLimitedRouter(t, store, now, 5)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invite", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "20" {
		t.Fatalf("expected Retry-After 20, got %q", got)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Status != http.StatusTooManyRequests || problem.RetryAfter != 20 {
		t.Fatalf("unexpected problem payload %+v", problem)
	}
	if problem.Instance != "/invite" {
		t.Fatalf("expected instance /invite, got %q", problem.Instance)
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	now := time.Now()
	store := &fakeRateLimitStore{err: errors.New("redis down")}

	router := newRateLimitedRouter(t, store, now, 5)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invite", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 when store fails, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatalf("expected no rate limit headers when store fails")
	}
}

func TestRateLimiterWithMemoryStoreRejectsAfterLimit(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	router := newRateLimitedRouter(t, memory.NewRateLimitStore(), now, 2)

	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invite", nil))
		codes = append(codes, rr.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("request %d: expected %d, got %d", i, want[i], codes[i])
		}
	}
}

func TestRateLimiterSkipsInvalidRules(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeRateLimitStore{}

	router := gin.New()
	router.Use(NewRateLimiter(store, nil).RateLimit(RateLimitRule{Name: "broken", Limit: 0, Window: time.Minute, Identifier: ClientIPIdentifier()}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(store.keys) != 0 {
		t.Fatalf("expected store to be untouched, got %v", store.keys)
	}
}
