package usecase

import (
	"context"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

const maxAccessReasonLength = 1000

// AccessRequestInput describes a request to join a scope.
type AccessRequestInput struct {
	UserID string
	Scope  string
	Reason string
}

// RequestAccessToScope records the request for manual review and acknowledges it.
// Nothing is granted automatically.
func (s *DirectoryService) RequestAccessToScope(ctx context.Context, input AccessRequestInput) (request domain.AccessRequest, err error) {
	ctx, span := s.startSpan(ctx, "RequestAccessToScope",
		attribute.String("user.id", input.UserID),
		attribute.String("scope", input.Scope),
	)
	defer func() { s.finish(span, "request_access", err) }()

	scope, err := required("scope", input.Scope)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	reason := strings.TrimSpace(input.Reason)
	if len([]rune(reason)) > maxAccessReasonLength {
		return domain.AccessRequest{}, fmt.Errorf("%w: reason exceeds %d characters", ErrInvalidInput, maxAccessReasonLength)
	}

	user, err := s.findAccount(ctx, input.UserID)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if user == nil {
		return domain.AccessRequest{}, ErrAccountNotFound
	}

	request = domain.AccessRequest{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Scope:     scope,
		Reason:    reason,
		Status:    domain.AccessRequestPendingReview,
		CreatedAt: s.now(),
	}

	if s.requests != nil {
		if err := s.requests.CreateAccessRequest(ctx, request); err != nil {
			return domain.AccessRequest{}, fmt.Errorf("record access request: %w", err)
		}
	}

	if s.events != nil {
		event := domain.AccessRequestedEvent{
			EventID:     uuid.NewString(),
			RequestID:   request.ID,
			UserID:      request.UserID,
			Scope:       request.Scope,
			Reason:      request.Reason,
			RequestedAt: request.CreatedAt,
		}
		if err := s.events.PublishAccessRequested(ctx, event); err != nil {
			s.logger.Warn("failed to publish access requested event", zap.String("request_id", request.ID), zap.Error(err))
		}
	}

	s.logger.Info("access to scope requested",
		zap.String("request_id", request.ID),
		zap.String("user_id", user.ID),
		zap.String("scope", scope),
	)
	return request, nil
}
