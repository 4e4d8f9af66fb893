package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/infra/security"
	"github.com/arklim/workspace-directory/internal/repository"
)

const (
	defaultInvitationTTL  = 24 * time.Hour
	defaultInviteLinkBase = "http://localhost:3000/auth/join"
	defaultPageSize       = 100
	defaultOwnerRole      = "workspace_owner"
	personalScopePrefix   = "tenant-personal-"
	defaultTheme          = "system"
	tracerName            = "github.com/arklim/workspace-directory/internal/usecase"
)

// Object and action checked against a ScopeAuthorizer before managing a scope.
const (
	ManagedObject = "directory"
	ManageAction  = "manage"
)

var defaultManagingRoles = []string{"workspace_owner", "tenant_admin", "tenant_manager"}

// DirectoryService orchestrates accounts, role assignments and invitations.
// It holds no mutable state after construction and is safe for concurrent use.
type DirectoryService struct {
	accounts    port.AccountDirectory
	policies    port.PolicyStore
	invitations port.InvitationStore
	requests    port.AccessRequestStore
	notifier    port.InvitationNotifier
	events      port.EventPublisher
	metrics     port.DirectoryMetrics
	passwords   port.PasswordPolicyValidator
	hasher      port.PasswordHasher
	authorizer  port.ScopeAuthorizer
	logger      *zap.Logger
	tracer      trace.Tracer

	now           func() time.Time
	newToken      func() (string, error)
	newScopeID    func() string
	invitationTTL time.Duration
	linkBase      string
	pageSize      int
	ownerRole     string
	managingRoles map[string]struct{}
}

// DirectoryOption customises a DirectoryService at construction time.
type DirectoryOption func(*DirectoryService)

func WithLogger(logger *zap.Logger) DirectoryOption {
	return func(s *DirectoryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithNotifier(notifier port.InvitationNotifier) DirectoryOption {
	return func(s *DirectoryService) { s.notifier = notifier }
}

func WithEventPublisher(events port.EventPublisher) DirectoryOption {
	return func(s *DirectoryService) { s.events = events }
}

func WithAccessRequests(store port.AccessRequestStore) DirectoryOption {
	return func(s *DirectoryService) { s.requests = store }
}

func WithMetrics(metrics port.DirectoryMetrics) DirectoryOption {
	return func(s *DirectoryService) { s.metrics = metrics }
}

// WithClock overrides the internal clock for deterministic tests.
func WithClock(clock func() time.Time) DirectoryOption {
	return func(s *DirectoryService) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithInvitationTTL(ttl time.Duration) DirectoryOption {
	return func(s *DirectoryService) {
		if ttl > 0 {
			s.invitationTTL = ttl
		}
	}
}

// WithInviteLinkBase sets the accept URL the token is appended to.
func WithInviteLinkBase(base string) DirectoryOption {
	return func(s *DirectoryService) {
		if base = strings.TrimSpace(base); base != "" {
			s.linkBase = base
		}
	}
}

// WithPageSize bounds each ListAccounts call made while enumerating users.
func WithPageSize(size int) DirectoryOption {
	return func(s *DirectoryService) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithOwnerRole sets the role granted on a freshly provisioned personal scope.
func WithOwnerRole(role string) DirectoryOption {
	return func(s *DirectoryService) {
		if role = strings.TrimSpace(role); role != "" {
			s.ownerRole = role
		}
	}
}

// WithManagingRoles replaces the set of scope roles that grant management authority.
func WithManagingRoles(roles ...string) DirectoryOption {
	return func(s *DirectoryService) {
		set := make(map[string]struct{}, len(roles))
		for _, role := range roles {
			if role = strings.TrimSpace(role); role != "" {
				set[role] = struct{}{}
			}
		}
		if len(set) > 0 {
			s.managingRoles = set
		}
	}
}

// WithScopeAuthorizer delegates the management check to a policy engine.
// The managing-role set is then ignored.
func WithScopeAuthorizer(authorizer port.ScopeAuthorizer) DirectoryOption {
	return func(s *DirectoryService) { s.authorizer = authorizer }
}

func WithPasswordPolicy(policy port.PasswordPolicyValidator) DirectoryOption {
	return func(s *DirectoryService) {
		if policy != nil {
			s.passwords = policy
		}
	}
}

func WithPasswordHasher(hasher port.PasswordHasher) DirectoryOption {
	return func(s *DirectoryService) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithTokenGenerator replaces the invitation token source.
func WithTokenGenerator(generate func() (string, error)) DirectoryOption {
	return func(s *DirectoryService) {
		if generate != nil {
			s.newToken = generate
		}
	}
}

// WithScopeIDGenerator replaces the personal scope identifier source.
func WithScopeIDGenerator(generate func() string) DirectoryOption {
	return func(s *DirectoryService) {
		if generate != nil {
			s.newScopeID = generate
		}
	}
}

// NewDirectoryService constructs the service. The three stores are required.
func NewDirectoryService(accounts port.AccountDirectory, policies port.PolicyStore, invitations port.InvitationStore, opts ...DirectoryOption) *DirectoryService {
	s := &DirectoryService{
		accounts:      accounts,
		policies:      policies,
		invitations:   invitations,
		passwords:     security.DefaultPasswordValidator(),
		hasher:        security.DefaultArgon2Hasher(),
		logger:        zap.NewNop(),
		tracer:        otel.Tracer(tracerName),
		now:           func() time.Time { return time.Now().UTC() },
		newToken:      security.GenerateInviteToken,
		newScopeID:    newPersonalScopeID,
		invitationTTL: defaultInvitationTTL,
		linkBase:      defaultInviteLinkBase,
		pageSize:      defaultPageSize,
		ownerRole:     defaultOwnerRole,
	}
	s.managingRoles = make(map[string]struct{}, len(defaultManagingRoles))
	for _, role := range defaultManagingRoles {
		s.managingRoles[role] = struct{}{}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func newPersonalScopeID() string {
	return personalScopePrefix + strings.ToLower(ulid.Make().String())
}

// InviteLink builds the accept URL for a token.
func (s *DirectoryService) InviteLink(token string) string {
	sep := "?"
	if strings.Contains(s.linkBase, "?") {
		sep = "&"
	}
	return s.linkBase + sep + "token=" + token
}

func (s *DirectoryService) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "DirectoryService."+operation, trace.WithAttributes(attrs...))
}

// finish closes the span and records the operation outcome.
func (s *DirectoryService) finish(span trace.Span, operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = outcomeFor(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, outcome)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPasswordPolicyViolation):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrDuplicateInvite), errors.Is(err, ErrInvitationUsed):
		return "conflict"
	case errors.Is(err, ErrInvitationNotFound), errors.Is(err, ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrInvitationExpired):
		return "expired"
	default:
		return "error"
	}
}

// findAccount returns nil without error when the account does not exist.
func (s *DirectoryService) findAccount(ctx context.Context, id string) (*domain.Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	account, err := s.accounts.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *DirectoryService) findAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return account, nil
}

// requireManager loads the actor and checks it may manage scope.
func (s *DirectoryService) requireManager(ctx context.Context, actorID, scope string) (*domain.Account, error) {
	actor, err := s.findAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, ErrForbidden
	}
	ok, err := s.canManage(ctx, *actor, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return actor, nil
}

// canManage reports whether actor is a superuser or holds a managing role in scope.
func (s *DirectoryService) canManage(ctx context.Context, actor domain.Account, scope string) (bool, error) {
	if actor.IsSuperuser() {
		return true, nil
	}
	if s.authorizer != nil {
		allowed, err := s.authorizer.Enforce(actor.ID, scope, ManagedObject, ManageAction)
		if err != nil {
			return false, fmt.Errorf("authorize actor: %w", err)
		}
		return allowed, nil
	}
	assignments, err := s.policies.GetUserAssignments(ctx, actor.ID)
	if err != nil {
		return false, fmt.Errorf("load actor assignments: %w", err)
	}
	for _, assignment := range assignments {
		if assignment.Scope != scope {
			continue
		}
		if _, ok := s.managingRoles[assignment.RoleID]; ok {
			return true, nil
		}
	}
	return false, nil
}

// loadComposite assembles the read model. ok is false when the profile is missing.
func (s *DirectoryService) loadComposite(ctx context.Context, account domain.Account) (domain.UserComposite, bool, error) {
	profile, err := s.accounts.GetProfile(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.UserComposite{}, false, nil
		}
		return domain.UserComposite{}, false, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return domain.UserComposite{}, false, nil
	}

	assignments, err := s.policies.GetUserAssignments(ctx, account.ID)
	if err != nil {
		return domain.UserComposite{}, false, fmt.Errorf("get assignments: %w", err)
	}
	if assignments == nil {
		assignments = []domain.RoleAssignment{}
	}

	return domain.UserComposite{Account: account, Profile: *profile, Assignments: assignments}, true, nil
}

// compositeFor loads the composite of a just-written account, failing if the profile is gone.
func (s *DirectoryService) compositeFor(ctx context.Context, account domain.Account) (domain.UserComposite, error) {
	composite, ok, err := s.loadComposite(ctx, account)
	if err != nil {
		return domain.UserComposite{}, err
	}
	if !ok {
		return domain.UserComposite{}, fmt.Errorf("profile missing for account %s", account.ID)
	}
	return composite, nil
}

// discardAccount removes an account whose setup did not complete, so the
// address is not left claimed by a record without a profile.
func (s *DirectoryService) discardAccount(ctx context.Context, accountID string, cause error) {
	if err := s.accounts.DeleteAccount(context.WithoutCancel(ctx), accountID); err != nil {
		s.logger.Error("failed to discard incomplete account",
			zap.String("user_id", accountID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

// normalizeEmail trims and lower-cases, then checks the address is plausible.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") || !govalidator.IsEmail(email) {
		return "", fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	return email, nil
}

func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return value, nil
}

func (s *DirectoryService) checkPassword(password string, inputs ...string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := s.passwords.Validate(password, inputs...); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}
	return nil
}

func workspaceName(name string) string {
	return name + "'s Workspace"
}
