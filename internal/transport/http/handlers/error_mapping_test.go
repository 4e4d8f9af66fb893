package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/workspace-directory/internal/usecase"
)

func TestDirectoryErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: email is required", usecase.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: too guessable", usecase.ErrPasswordPolicyViolation), http.StatusBadRequest},
		{usecase.ErrForbidden, http.StatusForbidden},
		{usecase.ErrInvitationNotFound, http.StatusNotFound},
		{usecase.ErrAccountNotFound, http.StatusNotFound},
		{usecase.ErrAccountExists, http.StatusConflict},
		{usecase.ErrDuplicateInvite, http.StatusConflict},
		{usecase.ErrInvitationUsed, http.StatusConflict},
		{usecase.ErrInvitationExpired, http.StatusGone},
		{fmt.Errorf("create invitation: %w", errors.New("connection reset")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set("trace_id", "trace-1")

			respondDirectoryError(c, tc.err)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.TraceID != "trace-1" {
				t.Fatalf("expected trace id, got %q", body.TraceID)
			}
			if tc.status == http.StatusInternalServerError && body.Error != "internal server error" {
				t.Fatalf("infrastructure detail leaked: %q", body.Error)
			}
		})
	}
}

func TestPasswordPolicyMessageWinsOverInvalidInput(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	respondDirectoryError(c, usecase.ErrPasswordPolicyViolation)

	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "password does not meet complexity requirements" {
		t.Fatalf("unexpected message %q", body.Error)
	}
}

func TestValidationErrorsCarryTheirReason(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: email is malformed", usecase.ErrInvalidInput), "email is malformed"},
		{fmt.Errorf("%w: name is required", usecase.ErrInvalidInput), "name is required"},
		{fmt.Errorf("create user: %w", fmt.Errorf("%w: scope is required", usecase.ErrInvalidInput)), "scope is required"},
		{usecase.ErrInvalidInput, "invalid request"},
		{fmt.Errorf("%w: password must be at least 12 characters long", usecase.ErrPasswordPolicyViolation), "password must be at least 12 characters long"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

			respondDirectoryError(c, tc.err)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, body.Error)
			}
		})
	}
}
