package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/transport/http/middleware"
	"github.com/arklim/workspace-directory/internal/usecase"
)

// DirectoryHandler exposes DirectoryService over HTTP.
type DirectoryHandler struct {
	directory *usecase.DirectoryService
}

func NewDirectoryHandler(directory *usecase.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

func (h *DirectoryHandler) ready(c *gin.Context) bool {
	if h.directory == nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "directory handler not fully configured"))
		return false
	}
	return true
}

func (h *DirectoryHandler) actor(c *gin.Context) (string, bool) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return "", false
	}
	return actorID, true
}

// ListUsers returns every user the actor may manage.
func (h *DirectoryHandler) ListUsers(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	users, err := h.directory.ListManagedUsers(c.Request.Context(), actorID)
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	resp := UsersResponse{Users: make([]UserView, 0, len(users))}
	for _, user := range users {
		resp.Users = append(resp.Users, newUserView(user))
	}
	c.JSON(http.StatusOK, resp)
}

// Invite issues an invitation and returns its token and link to the admin.
func (h *DirectoryHandler) Invite(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid invitation payload"))
		return
	}

	result, err := h.directory.InviteUserToScope(c.Request.Context(), actorID, usecase.InviteInput{
		Scope: req.Scope,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, InviteResponse{
		InvitationID: result.Invitation.ID,
		Token:        result.Token,
		InviteLink:   result.Link,
		ExpiresAt:    result.Invitation.ExpiresAt,
	})
}

// AcceptInvite redeems a token. The route is public; the token is the credential.
func (h *DirectoryHandler) AcceptInvite(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid accept payload"))
		return
	}

	result, err := h.directory.AcceptInvite(c.Request.Context(), usecase.AcceptInviteInput{
		Token:    req.Token,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, AcceptInviteResponse{
		Success: true,
		UserID:  result.User.Account.ID,
		Created: result.Created,
	})
}

// ListScopeInvitations lists a scope's invitations without their tokens.
func (h *DirectoryHandler) ListScopeInvitations(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	invitations, err := h.directory.ListScopeInvitations(c.Request.Context(), actorID, c.Param("scope"))
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	resp := InvitationsResponse{Invitations: make([]InvitationView, 0, len(invitations))}
	for _, inv := range invitations {
		resp.Invitations = append(resp.Invitations, newInvitationView(inv))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateUser creates a pre-verified account directly in a scope.
func (h *DirectoryHandler) CreateUser(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid user payload"))
		return
	}

	user, err := h.directory.CreateUserInScope(c.Request.Context(), actorID, usecase.CreateUserInput{
		Scope: req.Scope,
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
	})
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserView(user))
}

// Register provisions a self-registered user with a personal scope.
func (h *DirectoryHandler) Register(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, err := h.directory.ProvisionUserWithPersonalScope(c.Request.Context(), usecase.ProvisionInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserView(user))
}

// AssignRole grants a role in a scope on behalf of the actor.
func (h *DirectoryHandler) AssignRole(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role assignment payload"))
		return
	}

	err := h.directory.AssignRoleSecurely(c.Request.Context(), usecase.AssignRoleInput{
		ActorID:      actorID,
		TargetUserID: req.TargetUserID,
		RoleID:       req.RoleID,
		Scope:        req.Scope,
	})
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// RequestAccess records the actor's request to join a scope.
func (h *DirectoryHandler) RequestAccess(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req AccessRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid access request payload"))
		return
	}

	request, err := h.directory.RequestAccessToScope(c.Request.Context(), usecase.AccessRequestInput{
		UserID: actorID,
		Scope:  req.Scope,
		Reason: req.Reason,
	})
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	status := request.Status
	if status == "" {
		status = domain.AccessRequestPendingReview
	}

	c.JSON(http.StatusAccepted, AccessRequestResponse{
		ID:        request.ID,
		Status:    string(status),
		Scope:     request.Scope,
		CreatedAt: request.CreatedAt,
	})
}
