package usecase

import (
	"context"
	"errors"
	"fmt"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/infra/logger"
	"github.com/arklim/workspace-directory/internal/infra/security"
	"github.com/arklim/workspace-directory/internal/repository"
)

// CreateUserInput describes an administrator-created account.
type CreateUserInput struct {
	Scope string
	Email string
	Name  string
	Role  string
}

// ProvisionInput describes a self-registration.
type ProvisionInput struct {
	Email    string
	Name     string
	Password string
}

// CreateUserInScope creates a pre-verified account directly inside scope.
// No credential is stored; the identity service runs its set-password flow.
func (s *DirectoryService) CreateUserInScope(ctx context.Context, actorID string, input CreateUserInput) (user domain.UserComposite, err error) {
	ctx, span := s.startSpan(ctx, "CreateUserInScope",
		attribute.String("actor.id", actorID),
		attribute.String("scope", input.Scope),
	)
	defer func() { s.finish(span, "create_user", err) }()

	scope, err := required("scope", input.Scope)
	if err != nil {
		return domain.UserComposite{}, err
	}
	actor, err := s.requireManager(ctx, actorID, scope)
	if err != nil {
		return domain.UserComposite{}, err
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return domain.UserComposite{}, err
	}
	name, err := required("name", input.Name)
	if err != nil {
		return domain.UserComposite{}, err
	}
	role, err := required("role", input.Role)
	if err != nil {
		return domain.UserComposite{}, err
	}

	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return domain.UserComposite{}, err
	}

	account, err := s.accounts.CreateAccount(ctx, domain.NewAccount{
		Email:      email,
		Roles:      []string{domain.SystemRoleUser},
		TenantIDs:  []string{scope},
		IsVerified: true,
		Status:     domain.AccountStatusActive,
	})
	if err != nil {
		return domain.UserComposite{}, wrapCreateAccount(err)
	}

	if _, err := s.accounts.UpdateProfile(ctx, account.ID, domain.ProfileUpdate{
		DisplayName: &name,
		AssociatedTenants: []domain.AssociatedTenant{{
			TenantID:    scope,
			DisplayName: scope,
			Status:      domain.TenantMembershipActive,
		}},
		Preferences: &domain.Preferences{Theme: defaultTheme, Notifications: true, CurrentTenantID: scope},
	}); err != nil {
		err = fmt.Errorf("create profile: %w", err)
		s.discardAccount(ctx, account.ID, err)
		return domain.UserComposite{}, err
	}

	now := s.now()
	if err := s.policies.AssignRole(ctx, domain.RoleAssignment{UserID: account.ID, RoleID: role, Scope: scope, AssignedAt: now}); err != nil {
		err = fmt.Errorf("assign initial role: %w", err)
		s.discardAccount(ctx, account.ID, err)
		return domain.UserComposite{}, err
	}

	user, err = s.compositeFor(ctx, account)
	if err != nil {
		return domain.UserComposite{}, err
	}

	if s.events != nil {
		event := domain.UserCreatedEvent{
			EventID:   uuid.NewString(),
			UserID:    account.ID,
			Email:     email,
			TenantID:  scope,
			RoleID:    role,
			CreatedBy: actor.ID,
			CreatedAt: now,
		}
		if err := s.events.PublishUserCreated(ctx, event); err != nil {
			s.logger.Warn("failed to publish user created event", zap.String("user_id", account.ID), zap.Error(err))
		}
	}

	s.logger.Info("user created in scope",
		zap.String("user_id", account.ID),
		zap.String("email", logger.MaskEmail(email)),
		zap.String("scope", scope),
		zap.String("actor_id", actor.ID),
	)
	return user, nil
}

// ProvisionUserWithPersonalScope registers a user together with a personal scope they own.
// The account stays unverified until the identity service confirms the email.
func (s *DirectoryService) ProvisionUserWithPersonalScope(ctx context.Context, input ProvisionInput) (user domain.UserComposite, err error) {
	ctx, span := s.startSpan(ctx, "ProvisionUserWithPersonalScope")
	defer func() { s.finish(span, "provision_user", err) }()

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return domain.UserComposite{}, err
	}
	name, err := required("name", input.Name)
	if err != nil {
		return domain.UserComposite{}, err
	}
	if err := s.checkPassword(input.Password, security.PasswordUserInputs(email, name)...); err != nil {
		return domain.UserComposite{}, err
	}
	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return domain.UserComposite{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.UserComposite{}, fmt.Errorf("hash password: %w", err)
	}

	scope := s.newScopeID()
	span.SetAttributes(attribute.String("scope", scope))

	account, err := s.accounts.CreateAccount(ctx, domain.NewAccount{
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        []string{domain.SystemRoleUser},
		TenantIDs:    []string{scope},
		IsVerified:   false,
		Status:       domain.AccountStatusActive,
	})
	if err != nil {
		return domain.UserComposite{}, wrapCreateAccount(err)
	}

	if _, err := s.accounts.UpdateProfile(ctx, account.ID, domain.ProfileUpdate{
		DisplayName: &name,
		AssociatedTenants: []domain.AssociatedTenant{{
			TenantID:    scope,
			DisplayName: workspaceName(name),
			Status:      domain.TenantMembershipActive,
		}},
		Preferences: &domain.Preferences{Theme: defaultTheme, Notifications: true, CurrentTenantID: scope},
	}); err != nil {
		err = fmt.Errorf("create profile: %w", err)
		s.discardAccount(ctx, account.ID, err)
		return domain.UserComposite{}, err
	}

	now := s.now()
	if err := s.policies.AssignRole(ctx, domain.RoleAssignment{UserID: account.ID, RoleID: s.ownerRole, Scope: scope, AssignedAt: now}); err != nil {
		err = fmt.Errorf("assign owner role: %w", err)
		s.discardAccount(ctx, account.ID, err)
		return domain.UserComposite{}, err
	}

	user, err = s.compositeFor(ctx, account)
	if err != nil {
		return domain.UserComposite{}, err
	}

	if s.events != nil {
		event := domain.UserProvisionedEvent{
			EventID:       uuid.NewString(),
			UserID:        account.ID,
			Email:         email,
			PersonalScope: scope,
			OwnerRole:     s.ownerRole,
			ProvisionedAt: now,
		}
		if err := s.events.PublishUserProvisioned(ctx, event); err != nil {
			s.logger.Warn("failed to publish user provisioned event", zap.String("user_id", account.ID), zap.Error(err))
		}
	}

	s.logger.Info("user provisioned with personal scope",
		zap.String("user_id", account.ID),
		zap.String("email", logger.MaskEmail(email)),
		zap.String("scope", scope),
	)
	return user, nil
}

func (s *DirectoryService) ensureEmailAvailable(ctx context.Context, email string) error {
	existing, err := s.findAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAccountExists
	}
	return nil
}

// wrapCreateAccount maps a uniqueness race on email to ErrAccountExists.
func wrapCreateAccount(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrAccountExists
	}
	return fmt.Errorf("create account: %w", err)
}
