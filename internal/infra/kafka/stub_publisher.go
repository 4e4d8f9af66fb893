package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, subject, scope string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("subject", subject),
			zap.String("scope", scope),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

func (p *StubPublisher) PublishInvitationCreated(_ context.Context, event domain.InvitationCreatedEvent) error {
	p.logEvent(EventInvitationCreated, event.InvitedBy, event.TenantID, event.CreatedAt,
		zap.String("invitation_id", event.InvitationID),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role_id", event.RoleID),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

func (p *StubPublisher) PublishInvitationAccepted(_ context.Context, event domain.InvitationAcceptedEvent) error {
	p.logEvent(EventInvitationAccepted, event.UserID, event.TenantID, event.AcceptedAt,
		zap.String("invitation_id", event.InvitationID),
		zap.String("role_id", event.RoleID),
		zap.Bool("account_created", event.AccountCreated),
	)
	return nil
}

func (p *StubPublisher) PublishUserCreated(_ context.Context, event domain.UserCreatedEvent) error {
	p.logEvent(EventUserCreated, event.UserID, event.TenantID, event.CreatedAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role_id", event.RoleID),
		zap.String("created_by", event.CreatedBy),
	)
	return nil
}

func (p *StubPublisher) PublishUserProvisioned(_ context.Context, event domain.UserProvisionedEvent) error {
	p.logEvent(EventUserProvisioned, event.UserID, event.PersonalScope, event.ProvisionedAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("owner_role", event.OwnerRole),
	)
	return nil
}

func (p *StubPublisher) PublishRoleAssigned(_ context.Context, event domain.RoleAssignedEvent) error {
	p.logEvent(EventRoleAssigned, event.UserID, event.Scope, event.AssignedAt,
		zap.String("role_id", event.RoleID),
		zap.String("assigned_by", event.AssignedBy),
	)
	return nil
}

func (p *StubPublisher) PublishAccessRequested(_ context.Context, event domain.AccessRequestedEvent) error {
	p.logEvent(EventAccessRequested, event.UserID, event.Scope, event.RequestedAt,
		zap.String("request_id", event.RequestID),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
