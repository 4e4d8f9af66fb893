package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/workspace-directory/internal/infra/security"
)

type stubVerifier struct {
	claims *security.AccessTokenClaims
	err    error
	seen   string
}

func (s *stubVerifier) ParseAccessToken(raw string) (*security.AccessTokenClaims, error) {
	s.seen = raw
	return s.claims, s.err
}

func newAuthRouter(verifier AccessTokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/me", RequireAuth(verifier), func(c *gin.Context) {
		id, ok := GetAuthenticatedUserID(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, id)
	})
	return router
}

func TestRequireAuthStoresActor(t *testing.T) {
	verifier := &stubVerifier{claims: &security.AccessTokenClaims{UserID: "user-1"}}
	router := newAuthRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "user-1" {
		t.Fatalf("expected actor user-1, got %q", rr.Body.String())
	}
	if verifier.seen != "abc.def.ghi" {
		t.Fatalf("verifier received %q", verifier.seen)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		err     error
		status  int
		message string
	}{
		{name: "missing header", status: http.StatusUnauthorized, message: "missing authorization header"},
		{name: "wrong scheme", header: "Basic Zm9vOmJhcg==", status: http.StatusUnauthorized, message: "invalid authorization format: expected 'Bearer <token>'"},
		{name: "empty token", header: "Bearer   ", status: http.StatusUnauthorized, message: "missing access token"},
		{
			name:    "expired",
			header:  "Bearer tok",
			err:     fmt.Errorf("%w: %w", security.ErrInvalidToken, security.ErrExpiredToken),
			status:  http.StatusUnauthorized,
			message: "access token expired",
		},
		{name: "invalid", header: "Bearer tok", err: security.ErrInvalidToken, status: http.StatusUnauthorized, message: "invalid access token"},
		{name: "unexpected", header: "Bearer tok", err: errors.New("boom"), status: http.StatusInternalServerError, message: "authentication failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newAuthRouter(&stubVerifier{err: tc.err})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, body.Error)
			}
			if body.TraceID == "" {
				t.Fatalf("expected trace id in error body")
			}
		})
	}
}

func TestRequireAuthWithoutVerifier(t *testing.T) {
	router := newAuthRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
