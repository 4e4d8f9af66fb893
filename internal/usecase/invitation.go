package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/infra/logger"
	"github.com/arklim/workspace-directory/internal/infra/security"
	"github.com/arklim/workspace-directory/internal/repository"
)

// InviteInput describes an invitation request.
type InviteInput struct {
	Scope string
	Email string
	Role  string
}

// InviteResult carries the persisted invitation and its capability token.
type InviteResult struct {
	Invitation domain.Invitation
	Token      string
	Link       string
}

// AcceptInviteInput carries the token plus the credentials used when the
// invitee does not have an account yet.
type AcceptInviteInput struct {
	Token    string
	Name     string
	Password string
}

// AcceptInviteResult reports the resulting user and whether an account was created.
type AcceptInviteResult struct {
	User    domain.UserComposite
	Created bool
}

// InviteUserToScope issues a pending invitation for email into scope with role.
func (s *DirectoryService) InviteUserToScope(ctx context.Context, actorID string, input InviteInput) (result InviteResult, err error) {
	ctx, span := s.startSpan(ctx, "InviteUserToScope",
		attribute.String("actor.id", actorID),
		attribute.String("scope", input.Scope),
	)
	defer func() { s.finish(span, "invite_user", err) }()

	scope, err := required("scope", input.Scope)
	if err != nil {
		return InviteResult{}, err
	}
	role, err := required("role", input.Role)
	if err != nil {
		return InviteResult{}, err
	}
	actor, err := s.requireManager(ctx, actorID, scope)
	if err != nil {
		return InviteResult{}, err
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return InviteResult{}, err
	}

	existing, err := s.findAccountByEmail(ctx, email)
	if err != nil {
		return InviteResult{}, err
	}
	if existing != nil {
		return InviteResult{}, ErrAccountExists
	}

	if err := s.ensureNoPendingInvite(ctx, scope, email); err != nil {
		return InviteResult{}, err
	}

	token, err := s.newToken()
	if err != nil {
		return InviteResult{}, fmt.Errorf("generate invitation token: %w", err)
	}

	now := s.now()
	invitation := domain.Invitation{
		ID:              uuid.NewString(),
		Email:           email,
		TargetTenantID:  scope,
		TargetRoleID:    role,
		InvitedByUserID: actor.ID,
		Token:           token,
		ExpiresAt:       now.Add(s.invitationTTL),
		Status:          domain.InvitationStatusPending,
		CreatedAt:       now,
	}

	stored, err := s.invitations.CreateInvitation(ctx, invitation)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return InviteResult{}, ErrDuplicateInvite
		}
		return InviteResult{}, fmt.Errorf("create invitation: %w", err)
	}
	stored.Token = ""

	link := s.InviteLink(token)
	s.notify(ctx, stored, link)
	s.publishInvitationCreated(ctx, stored)

	s.logger.Info("invitation issued",
		zap.String("invitation_id", stored.ID),
		zap.String("email", logger.MaskEmail(email)),
		zap.String("scope", scope),
		zap.String("role", role),
	)

	return InviteResult{Invitation: stored, Token: token, Link: link}, nil
}

// ensureNoPendingInvite rejects a second pending invitation for (email, scope).
// A pending invitation whose expiry has passed is retired instead.
func (s *DirectoryService) ensureNoPendingInvite(ctx context.Context, scope, email string) error {
	invitations, err := s.invitations.ListInvitationsByTenant(ctx, scope)
	if err != nil {
		return fmt.Errorf("list invitations: %w", err)
	}

	now := s.now()
	for _, inv := range invitations {
		if !inv.IsPending() || !strings.EqualFold(inv.Email, email) {
			continue
		}
		if !inv.IsExpired(now) {
			return ErrDuplicateInvite
		}
		if err := s.invitations.MarkAsExpired(ctx, inv.ID); err != nil && !errors.Is(err, repository.ErrStateConflict) {
			return fmt.Errorf("expire invitation: %w", err)
		}
	}
	return nil
}

func (s *DirectoryService) notify(ctx context.Context, invitation domain.Invitation, link string) {
	if s.notifier == nil {
		return
	}
	notice := domain.InvitationNotice{
		InvitationID: invitation.ID,
		Email:        invitation.Email,
		Link:         link,
		TenantID:     invitation.TargetTenantID,
		RoleID:       invitation.TargetRoleID,
		InvitedBy:    invitation.InvitedByUserID,
		ExpiresAt:    invitation.ExpiresAt,
	}
	if err := s.notifier.SendInvitation(ctx, notice); err != nil {
		s.logger.Warn("failed to deliver invitation",
			zap.String("invitation_id", invitation.ID),
			zap.String("email", logger.MaskEmail(invitation.Email)),
			zap.Error(err),
		)
	}
}

// AcceptInvite consumes a pending invitation exactly once and grants its role.
func (s *DirectoryService) AcceptInvite(ctx context.Context, input AcceptInviteInput) (result AcceptInviteResult, err error) {
	ctx, span := s.startSpan(ctx, "AcceptInvite")
	defer func() { s.finish(span, "accept_invite", err) }()

	token := strings.TrimSpace(input.Token)
	if token == "" {
		return AcceptInviteResult{}, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}

	invitation, err := s.invitations.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AcceptInviteResult{}, ErrInvitationNotFound
		}
		return AcceptInviteResult{}, fmt.Errorf("get invitation: %w", err)
	}
	if invitation == nil {
		return AcceptInviteResult{}, ErrInvitationNotFound
	}
	span.SetAttributes(attribute.String("invitation.id", invitation.ID), attribute.String("scope", invitation.TargetTenantID))

	if !invitation.IsPending() {
		return AcceptInviteResult{}, ErrInvitationUsed
	}
	now := s.now()
	if invitation.IsExpired(now) {
		return AcceptInviteResult{}, ErrInvitationExpired
	}

	existing, err := s.findAccountByEmail(ctx, invitation.Email)
	if err != nil {
		return AcceptInviteResult{}, err
	}

	var (
		name         string
		passwordHash string
	)
	if existing == nil {
		if name, err = required("name", input.Name); err != nil {
			return AcceptInviteResult{}, err
		}
		if err := s.checkPassword(input.Password, security.PasswordUserInputs(invitation.Email, name)...); err != nil {
			return AcceptInviteResult{}, err
		}
		if passwordHash, err = s.hasher.Hash(input.Password); err != nil {
			return AcceptInviteResult{}, fmt.Errorf("hash password: %w", err)
		}
	}

	if err := s.invitations.MarkAsAccepted(ctx, invitation.ID, now); err != nil {
		if errors.Is(err, repository.ErrStateConflict) || errors.Is(err, repository.ErrNotFound) {
			return AcceptInviteResult{}, ErrInvitationUsed
		}
		return AcceptInviteResult{}, fmt.Errorf("mark invitation accepted: %w", err)
	}

	account, created, err := s.grantInvitation(ctx, *invitation, existing, name, passwordHash, now)
	if err != nil {
		s.reopenInvitation(ctx, *invitation, err)
		return AcceptInviteResult{}, err
	}

	composite, err := s.compositeFor(ctx, account)
	if err != nil {
		return AcceptInviteResult{}, err
	}

	s.publishInvitationAccepted(ctx, *invitation, account.ID, created, now)
	s.logger.Info("invitation accepted",
		zap.String("invitation_id", invitation.ID),
		zap.String("user_id", account.ID),
		zap.Bool("account_created", created),
	)

	return AcceptInviteResult{User: composite, Created: created}, nil
}

// grantInvitation runs after the invitation was marked accepted. It creates or links
// the account and assigns the invited role. An account it created is removed again
// when a later step fails.
func (s *DirectoryService) grantInvitation(ctx context.Context, invitation domain.Invitation, existing *domain.Account, name, passwordHash string, at time.Time) (domain.Account, bool, error) {
	var (
		account domain.Account
		created bool
		err     error
	)
	if existing == nil {
		account, err = s.createInvitedAccount(ctx, invitation, name, passwordHash)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			// Registered through another path after the lookup.
			if existing, err = s.findAccountByEmail(ctx, invitation.Email); err != nil {
				return domain.Account{}, false, err
			}
			if existing == nil {
				return domain.Account{}, false, fmt.Errorf("create account: %w", repository.ErrDuplicate)
			}
		case err != nil:
			return domain.Account{}, false, err
		default:
			created = true
		}
	}
	if !created {
		if account, err = s.linkExistingAccount(ctx, *existing, invitation.TargetTenantID); err != nil {
			return domain.Account{}, false, err
		}
	}

	assignment := domain.RoleAssignment{
		UserID:     account.ID,
		RoleID:     invitation.TargetRoleID,
		Scope:      invitation.TargetTenantID,
		AssignedAt: at,
	}
	if err := s.policies.AssignRole(ctx, assignment); err != nil {
		err = fmt.Errorf("assign invited role: %w", err)
		if created {
			s.discardAccount(ctx, account.ID, err)
		}
		return domain.Account{}, false, err
	}
	return account, created, nil
}

// reopenInvitation puts a consumed invitation back to pending after its grant failed,
// so the invitee can retry with the same token.
func (s *DirectoryService) reopenInvitation(ctx context.Context, invitation domain.Invitation, cause error) {
	err := s.invitations.ReopenInvitation(context.WithoutCancel(ctx), invitation.ID)
	if err == nil {
		s.logger.Warn("invitation grant failed, invitation reopened",
			zap.String("invitation_id", invitation.ID),
			zap.NamedError("cause", cause),
		)
		return
	}
	s.logger.Error("invitation consumed but grant failed",
		zap.String("invitation_id", invitation.ID),
		zap.String("email", logger.MaskEmail(invitation.Email)),
		zap.NamedError("cause", cause),
		zap.Error(err),
	)
}

// createInvitedAccount materialises the invitee. Holding the emailed token proves the address.
func (s *DirectoryService) createInvitedAccount(ctx context.Context, invitation domain.Invitation, name, passwordHash string) (domain.Account, error) {
	account, err := s.accounts.CreateAccount(ctx, domain.NewAccount{
		Email:        invitation.Email,
		PasswordHash: passwordHash,
		Roles:        []string{domain.SystemRoleUser},
		TenantIDs:    []string{invitation.TargetTenantID},
		IsVerified:   true,
		Status:       domain.AccountStatusActive,
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	_, err = s.accounts.UpdateProfile(ctx, account.ID, domain.ProfileUpdate{
		DisplayName: &name,
		AssociatedTenants: []domain.AssociatedTenant{{
			TenantID:    invitation.TargetTenantID,
			DisplayName: invitation.TargetTenantID,
			Status:      domain.TenantMembershipActive,
		}},
		Preferences: &domain.Preferences{
			Theme:           defaultTheme,
			Notifications:   true,
			CurrentTenantID: invitation.TargetTenantID,
		},
	})
	if err != nil {
		err = fmt.Errorf("create profile: %w", err)
		s.discardAccount(ctx, account.ID, err)
		return domain.Account{}, err
	}
	return account, nil
}

// linkExistingAccount adds the tenant to an account registered after the invitation was issued.
func (s *DirectoryService) linkExistingAccount(ctx context.Context, existing domain.Account, tenantID string) (domain.Account, error) {
	account, err := s.accounts.AddTenantMembership(ctx, existing.ID, tenantID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("add tenant membership: %w", err)
	}

	profile, err := s.accounts.GetProfile(ctx, account.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("get profile: %w", err)
	}

	var current domain.Profile
	if profile != nil {
		if profile.HasTenant(tenantID) {
			return account, nil
		}
		current = *profile
	}

	tenants := append(append([]domain.AssociatedTenant(nil), current.AssociatedTenants...), domain.AssociatedTenant{
		TenantID:    tenantID,
		DisplayName: tenantID,
		Status:      domain.TenantMembershipActive,
	})
	update := domain.ProfileUpdate{AssociatedTenants: tenants}
	if profile == nil {
		name := displayNameFromEmail(account.Email)
		update.DisplayName = &name
		update.Preferences = &domain.Preferences{Theme: defaultTheme, Notifications: true, CurrentTenantID: tenantID}
	}
	if _, err := s.accounts.UpdateProfile(ctx, account.ID, update); err != nil {
		return domain.Account{}, fmt.Errorf("update profile: %w", err)
	}
	return account, nil
}

// ListScopeInvitations returns the invitations of a scope with expiry folded into the status.
// Tokens are never returned.
func (s *DirectoryService) ListScopeInvitations(ctx context.Context, actorID, scope string) (invitations []domain.Invitation, err error) {
	ctx, span := s.startSpan(ctx, "ListScopeInvitations", attribute.String("actor.id", actorID), attribute.String("scope", scope))
	defer func() { s.finish(span, "list_scope_invitations", err) }()

	if scope, err = required("scope", scope); err != nil {
		return nil, err
	}
	if _, err := s.requireManager(ctx, actorID, scope); err != nil {
		return nil, err
	}

	stored, err := s.invitations.ListInvitationsByTenant(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}

	now := s.now()
	invitations = make([]domain.Invitation, 0, len(stored))
	for _, inv := range stored {
		inv.Token = ""
		inv.Status = inv.EffectiveStatus(now)
		invitations = append(invitations, inv)
	}
	return invitations, nil
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}

func (s *DirectoryService) publishInvitationCreated(ctx context.Context, invitation domain.Invitation) {
	if s.events == nil {
		return
	}
	event := domain.InvitationCreatedEvent{
		EventID:      uuid.NewString(),
		InvitationID: invitation.ID,
		Email:        invitation.Email,
		TenantID:     invitation.TargetTenantID,
		RoleID:       invitation.TargetRoleID,
		InvitedBy:    invitation.InvitedByUserID,
		CreatedAt:    invitation.CreatedAt,
		ExpiresAt:    invitation.ExpiresAt,
	}
	if err := s.events.PublishInvitationCreated(ctx, event); err != nil {
		s.logger.Warn("failed to publish invitation created event", zap.String("invitation_id", invitation.ID), zap.Error(err))
	}
}

func (s *DirectoryService) publishInvitationAccepted(ctx context.Context, invitation domain.Invitation, userID string, created bool, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.InvitationAcceptedEvent{
		EventID:        uuid.NewString(),
		InvitationID:   invitation.ID,
		UserID:         userID,
		TenantID:       invitation.TargetTenantID,
		RoleID:         invitation.TargetRoleID,
		AccountCreated: created,
		AcceptedAt:     at,
	}
	if err := s.events.PublishInvitationAccepted(ctx, event); err != nil {
		s.logger.Warn("failed to publish invitation accepted event", zap.String("invitation_id", invitation.ID), zap.Error(err))
	}
}
