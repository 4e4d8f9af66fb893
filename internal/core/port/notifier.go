package port

import (
	"context"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// InvitationNotifier delivers invitation links to invitees.
type InvitationNotifier interface {
	SendInvitation(ctx context.Context, notice domain.InvitationNotice) error
}
