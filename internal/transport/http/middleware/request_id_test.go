package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/workspace-directory/internal/infra/logger"
)

func TestRequestIDPropagatesOrReplaces(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "caller id kept", inbound: "req-42.a_b:c", keep: true},
		{name: "missing id generated", inbound: ""},
		{name: "oversized id replaced", inbound: strings.Repeat("a", maxRequestIDLength+1)},
		{name: "log injection replaced", inbound: "abc\ninjected=1"},
		{name: "spaces replaced", inbound: "abc def"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			router := gin.New()
			router.Use(RequestID())
			router.GET("/", func(c *gin.Context) {
				seen = logger.RequestIDFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.inbound != "" {
				req.Header.Set(requestIDHeader, tc.inbound)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			got := rr.Header().Get(requestIDHeader)
			if got != seen {
				t.Fatalf("header %q and context %q differ", got, seen)
			}
			if tc.keep {
				if got != tc.inbound {
					t.Fatalf("expected %q kept, got %q", tc.inbound, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected generated uuid, got %q", got)
			}
		})
	}
}
