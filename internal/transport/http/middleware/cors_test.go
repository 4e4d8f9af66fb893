package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newCORSRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS(origins))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	router := newCORSRouter([]string{"https://app.example.test"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.test")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.test" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if rr.Header().Get("Vary") != "Origin" {
		t.Fatalf("expected Vary: Origin")
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	router := newCORSRouter([]string{"https://app.example.test"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.test")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header, got %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	router := newCORSRouter([]string{"*"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/directory/invitations", nil)
	req.Header.Set("Origin", "https://anything.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin")
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("wildcard origin must not allow credentials")
	}
	if rr.Header().Get("Access-Control-Allow-Methods") != "GET,POST,OPTIONS" {
		t.Fatalf("unexpected methods %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestCORSNormalisesConfiguredOrigins(t *testing.T) {
	router := newCORSRouter([]string{" https://App.Example.test/ ", ""})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.test")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.test" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials for a listed origin")
	}
	if got := rr.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Retry-After") || !strings.Contains(got, "X-RateLimit-Remaining") {
		t.Fatalf("expected rate limit headers exposed, got %q", got)
	}
}
