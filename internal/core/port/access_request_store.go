package port

import (
	"context"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// AccessRequestStore records scope access requests awaiting manual review.
type AccessRequestStore interface {
	CreateAccessRequest(ctx context.Context, request domain.AccessRequest) error
	ListAccessRequestsByScope(ctx context.Context, scope string) ([]domain.AccessRequest, error)
}
