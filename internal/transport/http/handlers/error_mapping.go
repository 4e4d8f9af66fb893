package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/workspace-directory/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// With ExposeReason set, the text wrapped after "<sentinel>: " replaces Message,
// so validation failures tell the caller which field is wrong.
type ErrorCase struct {
	Err          error
	Status       int
	Message      string
	ExposeReason bool
}

// directoryErrorCases covers every sentinel DirectoryService returns. Anything
// else is an infrastructure failure and maps to the fallback.
var directoryErrorCases = []ErrorCase{
	{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet complexity requirements", ExposeReason: true},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid request", ExposeReason: true},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions for scope"},
	{Err: usecase.ErrInvitationNotFound, Status: http.StatusNotFound, Message: "invitation not found"},
	{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
	{Err: usecase.ErrAccountExists, Status: http.StatusConflict, Message: "an account already exists for this email"},
	{Err: usecase.ErrDuplicateInvite, Status: http.StatusConflict, Message: "a pending invitation already exists for this email"},
	{Err: usecase.ErrInvitationUsed, Status: http.StatusConflict, Message: "invitation already used"},
	{Err: usecase.ErrInvitationExpired, Status: http.StatusGone, Message: "invitation expired"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			message := cs.Message
			if cs.ExposeReason {
				if reason := wrappedReason(err, cs.Err); reason != "" {
					message = reason
				}
			}
			c.JSON(cs.Status, NewErrorResponse(c, message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// wrappedReason returns the text following "<sentinel>: " in err, if any.
func wrappedReason(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	idx := strings.Index(msg, prefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(msg[idx+len(prefix):])
}

func respondDirectoryError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, directoryErrorCases, http.StatusInternalServerError, "internal server error")
}
