package port

import (
	"context"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// PolicyStore owns scoped role assignments.
type PolicyStore interface {
	AssignRole(ctx context.Context, assignment domain.RoleAssignment) error
	GetUserAssignments(ctx context.Context, userID string) ([]domain.RoleAssignment, error)
}

// ScopeAuthorizer evaluates permission policies over the roles a user holds in a scope.
type ScopeAuthorizer interface {
	Enforce(userID, scope, obj, act string) (bool, error)
}
