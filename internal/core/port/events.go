package port

import (
	"context"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishInvitationCreated(ctx context.Context, event domain.InvitationCreatedEvent) error
	PublishInvitationAccepted(ctx context.Context, event domain.InvitationAcceptedEvent) error
	PublishUserCreated(ctx context.Context, event domain.UserCreatedEvent) error
	PublishUserProvisioned(ctx context.Context, event domain.UserProvisionedEvent) error
	PublishRoleAssigned(ctx context.Context, event domain.RoleAssignedEvent) error
	PublishAccessRequested(ctx context.Context, event domain.AccessRequestedEvent) error
}
