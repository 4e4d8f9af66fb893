package port

import (
	"context"
	"time"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// InvitationStore persists invitations.
type InvitationStore interface {
	// CreateInvitation returns repository.ErrDuplicate when a pending invitation already
	// exists for the same email (case-insensitive) and tenant.
	CreateInvitation(ctx context.Context, invitation domain.Invitation) (domain.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error)
	ListInvitationsByTenant(ctx context.Context, tenantID string) ([]domain.Invitation, error)
	// MarkAsAccepted transitions pending -> accepted, returning repository.ErrStateConflict
	// when the invitation is no longer pending.
	MarkAsAccepted(ctx context.Context, id string, at time.Time) error
	// MarkAsExpired transitions pending -> expired under the same condition.
	MarkAsExpired(ctx context.Context, id string) error
	// ReopenInvitation moves an accepted invitation back to pending and clears
	// accepted_at. It returns repository.ErrStateConflict unless the invitation is accepted.
	ReopenInvitation(ctx context.Context, id string) error
}
