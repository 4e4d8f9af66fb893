package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// SuccessResponse acknowledges a command without returning a resource.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the outcome of every dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// InviteRequest is the payload for issuing an invitation.
type InviteRequest struct {
	Scope string `json:"scope" binding:"required"`
	Email string `json:"email" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

// InviteResponse returns the capability token to the inviting admin.
type InviteResponse struct {
	InvitationID string    `json:"invitation_id"`
	Token        string    `json:"token"`
	InviteLink   string    `json:"invite_link"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AcceptInviteRequest redeems an invitation token.
type AcceptInviteRequest struct {
	Token    string `json:"token" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AcceptInviteResponse acknowledges the redemption.
type AcceptInviteResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
	Created bool   `json:"created"`
}

// CreateUserRequest creates a pre-verified account inside a scope.
type CreateUserRequest struct {
	Scope string `json:"scope" binding:"required"`
	Email string `json:"email" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

// RegisterRequest provisions a self-registered account with a personal scope.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AssignRoleRequest grants a role in a scope to another user.
type AssignRoleRequest struct {
	TargetUserID string `json:"target_user_id" binding:"required"`
	RoleID       string `json:"role_id" binding:"required"`
	Scope        string `json:"scope" binding:"required"`
}

// AccessRequestRequest asks for membership in a scope.
type AccessRequestRequest struct {
	Scope  string `json:"scope" binding:"required"`
	Reason string `json:"reason"`
}

// AccessRequestResponse acknowledges a recorded access request.
type AccessRequestResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignmentView is a role held in a scope.
type AssignmentView struct {
	RoleID     string    `json:"role_id"`
	Scope      string    `json:"scope"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ProfileView is the presentation part of a user.
type ProfileView struct {
	DisplayName       string                    `json:"display_name"`
	AssociatedTenants []domain.AssociatedTenant `json:"associated_tenants"`
	Preferences       domain.Preferences        `json:"preferences"`
}

// UserView is the serialized UserComposite. The password hash is deliberately absent.
type UserView struct {
	ID             string           `json:"id"`
	Email          string           `json:"email"`
	Status         string           `json:"status"`
	Roles          []string         `json:"roles"`
	TenantIDs      []string         `json:"tenant_ids"`
	Capabilities   []string         `json:"capabilities"`
	IsVerified     bool             `json:"is_verified"`
	Is2FAEnabled   bool             `json:"is_2fa_enabled"`
	HasCredentials bool             `json:"has_credentials"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Profile        ProfileView      `json:"profile"`
	Assignments    []AssignmentView `json:"assignments"`
}

// UsersResponse wraps the managed user listing.
type UsersResponse struct {
	Users []UserView `json:"users"`
}

// InvitationView is an invitation without its token.
type InvitationView struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Scope      string     `json:"scope"`
	Role       string     `json:"role"`
	InvitedBy  string     `json:"invited_by"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// InvitationsResponse wraps a scope's invitations.
type InvitationsResponse struct {
	Invitations []InvitationView `json:"invitations"`
}

func newUserView(user domain.UserComposite) UserView {
	account := user.Account

	assignments := make([]AssignmentView, 0, len(user.Assignments))
	for _, a := range user.Assignments {
		assignments = append(assignments, AssignmentView{RoleID: a.RoleID, Scope: a.Scope, AssignedAt: a.AssignedAt})
	}

	tenants := user.Profile.AssociatedTenants
	if tenants == nil {
		tenants = []domain.AssociatedTenant{}
	}

	return UserView{
		ID:             account.ID,
		Email:          account.Email,
		Status:         string(account.Status),
		Roles:          nonNil(account.Roles),
		TenantIDs:      nonNil(account.TenantIDs),
		Capabilities:   nonNil(account.Capabilities),
		IsVerified:     account.IsVerified,
		Is2FAEnabled:   account.Is2FAEnabled,
		HasCredentials: account.HasCredentials(),
		CreatedAt:      account.CreatedAt,
		UpdatedAt:      account.UpdatedAt,
		Profile: ProfileView{
			DisplayName:       user.Profile.DisplayName,
			AssociatedTenants: tenants,
			Preferences:       user.Profile.Preferences,
		},
		Assignments: assignments,
	}
}

func newInvitationView(inv domain.Invitation) InvitationView {
	return InvitationView{
		ID:         inv.ID,
		Email:      inv.Email,
		Scope:      inv.TargetTenantID,
		Role:       inv.TargetRoleID,
		InvitedBy:  inv.InvitedByUserID,
		Status:     string(inv.Status),
		ExpiresAt:  inv.ExpiresAt,
		CreatedAt:  inv.CreatedAt,
		AcceptedAt: inv.AcceptedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
