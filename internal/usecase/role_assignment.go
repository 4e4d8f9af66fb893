package usecase

import (
	"context"
	"fmt"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// AssignRoleInput describes a scoped role grant.
type AssignRoleInput struct {
	ActorID      string
	TargetUserID string
	RoleID       string
	Scope        string
}

// AssignRoleSecurely grants RoleID in Scope to the target after re-verifying
// the actor manages Scope.
func (s *DirectoryService) AssignRoleSecurely(ctx context.Context, input AssignRoleInput) (err error) {
	ctx, span := s.startSpan(ctx, "AssignRoleSecurely",
		attribute.String("actor.id", input.ActorID),
		attribute.String("scope", input.Scope),
		attribute.String("role", input.RoleID),
	)
	defer func() { s.finish(span, "assign_role", err) }()

	targetID, err := required("target user id", input.TargetUserID)
	if err != nil {
		return err
	}
	roleID, err := required("role id", input.RoleID)
	if err != nil {
		return err
	}
	scope, err := required("scope", input.Scope)
	if err != nil {
		return err
	}

	actor, err := s.requireManager(ctx, input.ActorID, scope)
	if err != nil {
		return err
	}

	target, err := s.findAccount(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrAccountNotFound
	}

	now := s.now()
	if err := s.policies.AssignRole(ctx, domain.RoleAssignment{UserID: target.ID, RoleID: roleID, Scope: scope, AssignedAt: now}); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	if s.events != nil {
		event := domain.RoleAssignedEvent{
			EventID:    uuid.NewString(),
			UserID:     target.ID,
			RoleID:     roleID,
			Scope:      scope,
			AssignedBy: actor.ID,
			AssignedAt: now,
		}
		if err := s.events.PublishRoleAssigned(ctx, event); err != nil {
			s.logger.Warn("failed to publish role assigned event", zap.String("user_id", target.ID), zap.Error(err))
		}
	}

	s.logger.Info("role assigned",
		zap.String("user_id", target.ID),
		zap.String("role_id", roleID),
		zap.String("scope", scope),
		zap.String("actor_id", actor.ID),
	)
	return nil
}
