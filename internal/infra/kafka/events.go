package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types published on the bus. The producer prefixes them with the
// configured topic prefix.
const (
	EventInvitationCreated  = "invitation.created"
	EventInvitationAccepted = "invitation.accepted"
	EventUserCreated        = "user.created"
	EventUserProvisioned    = "user.provisioned"
	EventRoleAssigned       = "role.assigned"
	EventAccessRequested    = "access.requested"
)

// EventPublisher implements port.EventPublisher using Kafka. Messages are
// keyed by scope so that events for one tenant stay ordered on a partition.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Subject   string           `json:"subject,omitempty"`
	Scope     string           `json:"scope,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, subject, scope string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Subject:   subject,
		Scope:     scope,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	key := scope
	if key == "" {
		key = subject
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("event_id"), Value: []byte(id)},
		},
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) PublishInvitationCreated(ctx context.Context, event domain.InvitationCreatedEvent) error {
	payload := struct {
		InvitationID string    `json:"invitation_id"`
		Email        string    `json:"email"`
		TenantID     string    `json:"tenant_id"`
		RoleID       string    `json:"role_id"`
		InvitedBy    string    `json:"invited_by"`
		CreatedAt    time.Time `json:"created_at"`
		ExpiresAt    time.Time `json:"expires_at"`
	}{
		InvitationID: event.InvitationID,
		Email:        event.Email,
		TenantID:     event.TenantID,
		RoleID:       event.RoleID,
		InvitedBy:    event.InvitedBy,
		CreatedAt:    event.CreatedAt.UTC(),
		ExpiresAt:    event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventInvitationCreated, event.InvitedBy, event.TenantID, event.CreatedAt, payload)
}

func (p *EventPublisher) PublishInvitationAccepted(ctx context.Context, event domain.InvitationAcceptedEvent) error {
	payload := struct {
		InvitationID   string    `json:"invitation_id"`
		UserID         string    `json:"user_id"`
		TenantID       string    `json:"tenant_id"`
		RoleID         string    `json:"role_id"`
		AccountCreated bool      `json:"account_created"`
		AcceptedAt     time.Time `json:"accepted_at"`
	}{
		InvitationID:   event.InvitationID,
		UserID:         event.UserID,
		TenantID:       event.TenantID,
		RoleID:         event.RoleID,
		AccountCreated: event.AccountCreated,
		AcceptedAt:     event.AcceptedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventInvitationAccepted, event.UserID, event.TenantID, event.AcceptedAt, payload)
}

func (p *EventPublisher) PublishUserCreated(ctx context.Context, event domain.UserCreatedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Email     string    `json:"email"`
		TenantID  string    `json:"tenant_id"`
		RoleID    string    `json:"role_id"`
		CreatedBy string    `json:"created_by"`
		CreatedAt time.Time `json:"created_at"`
	}{
		UserID:    event.UserID,
		Email:     event.Email,
		TenantID:  event.TenantID,
		RoleID:    event.RoleID,
		CreatedBy: event.CreatedBy,
		CreatedAt: event.CreatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserCreated, event.UserID, event.TenantID, event.CreatedAt, payload)
}

func (p *EventPublisher) PublishUserProvisioned(ctx context.Context, event domain.UserProvisionedEvent) error {
	payload := struct {
		UserID        string    `json:"user_id"`
		Email         string    `json:"email"`
		PersonalScope string    `json:"personal_scope"`
		OwnerRole     string    `json:"owner_role"`
		ProvisionedAt time.Time `json:"provisioned_at"`
	}{
		UserID:        event.UserID,
		Email:         event.Email,
		PersonalScope: event.PersonalScope,
		OwnerRole:     event.OwnerRole,
		ProvisionedAt: event.ProvisionedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserProvisioned, event.UserID, event.PersonalScope, event.ProvisionedAt, payload)
}

func (p *EventPublisher) PublishRoleAssigned(ctx context.Context, event domain.RoleAssignedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		RoleID     string    `json:"role_id"`
		Scope      string    `json:"scope"`
		AssignedBy string    `json:"assigned_by"`
		AssignedAt time.Time `json:"assigned_at"`
	}{
		UserID:     event.UserID,
		RoleID:     event.RoleID,
		Scope:      event.Scope,
		AssignedBy: event.AssignedBy,
		AssignedAt: event.AssignedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRoleAssigned, event.UserID, event.Scope, event.AssignedAt, payload)
}

func (p *EventPublisher) PublishAccessRequested(ctx context.Context, event domain.AccessRequestedEvent) error {
	payload := struct {
		RequestID   string    `json:"request_id"`
		UserID      string    `json:"user_id"`
		Scope       string    `json:"scope"`
		Reason      string    `json:"reason,omitempty"`
		RequestedAt time.Time `json:"requested_at"`
	}{
		RequestID:   event.RequestID,
		UserID:      event.UserID,
		Scope:       event.Scope,
		Reason:      event.Reason,
		RequestedAt: event.RequestedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccessRequested, event.UserID, event.Scope, event.RequestedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
