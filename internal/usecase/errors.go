package usecase

import "errors"

var (
	// ErrInvalidInput indicates a malformed or missing request field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAccountExists indicates the email already resolves to an account.
	ErrAccountExists = errors.New("account already exists for email")
	// ErrDuplicateInvite indicates a pending invitation already exists for the email and scope.
	ErrDuplicateInvite = errors.New("pending invitation already exists")
	// ErrInvitationNotFound indicates the token does not resolve to an invitation.
	ErrInvitationNotFound = errors.New("invitation not found")
	// ErrInvitationUsed indicates the invitation is no longer pending.
	ErrInvitationUsed = errors.New("invitation already used")
	// ErrInvitationExpired indicates the invitation is past its expiry.
	ErrInvitationExpired = errors.New("invitation expired")
	// ErrForbidden indicates the actor has no managing role in the scope.
	ErrForbidden = errors.New("actor lacks authority over scope")
	// ErrAccountNotFound indicates a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
)
