package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/repository"
	"github.com/arklim/workspace-directory/internal/repository/memory"
)

const strongPassword = "C0mplex!Passphrase#2025"

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.InvitationNotice
	err     error
}

func (n *recordingNotifier) SendInvitation(_ context.Context, notice domain.InvitationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

type recordingPublisher struct {
	mu                 sync.Mutex
	invitationsCreated []domain.InvitationCreatedEvent
	invitationsAccept  []domain.InvitationAcceptedEvent
	usersCreated       []domain.UserCreatedEvent
	usersProvisioned   []domain.UserProvisionedEvent
	rolesAssigned      []domain.RoleAssignedEvent
	accessRequested    []domain.AccessRequestedEvent
	err                error
}

func (p *recordingPublisher) PublishInvitationCreated(_ context.Context, e domain.InvitationCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invitationsCreated = append(p.invitationsCreated, e)
	return p.err
}

func (p *recordingPublisher) PublishInvitationAccepted(_ context.Context, e domain.InvitationAcceptedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invitationsAccept = append(p.invitationsAccept, e)
	return p.err
}

func (p *recordingPublisher) PublishUserCreated(_ context.Context, e domain.UserCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usersCreated = append(p.usersCreated, e)
	return p.err
}

func (p *recordingPublisher) PublishUserProvisioned(_ context.Context, e domain.UserProvisionedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usersProvisioned = append(p.usersProvisioned, e)
	return p.err
}

func (p *recordingPublisher) PublishRoleAssigned(_ context.Context, e domain.RoleAssignedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rolesAssigned = append(p.rolesAssigned, e)
	return p.err
}

func (p *recordingPublisher) PublishAccessRequested(_ context.Context, e domain.AccessRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessRequested = append(p.accessRequested, e)
	return p.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (m *recordingMetrics) RecordOperation(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string][]string)
	}
	m.outcomes[operation] = append(m.outcomes[operation], outcome)
}

// failingDirectory wraps the in-memory directory and injects failures.
type failingDirectory struct {
	*memory.AccountDirectory
	listErr    error
	profileErr error
}

func (f *failingDirectory) UpdateProfile(ctx context.Context, accountID string, update domain.ProfileUpdate) (domain.Profile, error) {
	if f.profileErr != nil {
		return domain.Profile{}, f.profileErr
	}
	return f.AccountDirectory.UpdateProfile(ctx, accountID, update)
}

// racingDirectory registers email through another path the first time a
// lookup for it misses after armed is set.
type racingDirectory struct {
	*memory.AccountDirectory
	email string
	armed atomic.Bool
}

func (r *racingDirectory) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := r.AccountDirectory.FindAccountByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) && strings.EqualFold(email, r.email) && r.armed.CompareAndSwap(true, false) {
		if _, createErr := r.AccountDirectory.CreateAccount(ctx, domain.NewAccount{
			Email:     email,
			Roles:     []string{domain.SystemRoleUser},
			TenantIDs: []string{"other"},
			Status:    domain.AccountStatusActive,
		}); createErr != nil {
			return nil, createErr
		}
	}
	return account, err
}

// failingPolicies rejects role assignments while assignErr is set.
type failingPolicies struct {
	*memory.PolicyStore
	mu        sync.Mutex
	assignErr error
}

func (p *failingPolicies) setAssignErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assignErr = err
}

func (p *failingPolicies) AssignRole(ctx context.Context, assignment domain.RoleAssignment) error {
	p.mu.Lock()
	err := p.assignErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.PolicyStore.AssignRole(ctx, assignment)
}

func (f *failingDirectory) ListAccounts(ctx context.Context, page domain.PageRequest) (domain.AccountPage, error) {
	if f.listErr != nil {
		return domain.AccountPage{}, f.listErr
	}
	return f.AccountDirectory.ListAccounts(ctx, page)
}

type fixture struct {
	svc         *DirectoryService
	accounts    *memory.AccountDirectory
	policies    *memory.PolicyStore
	invitations *memory.InvitationStore
	requests    *memory.AccessRequestStore
	notifier    *recordingNotifier
	events      *recordingPublisher
	metrics     *recordingMetrics
	now         time.Time
	clock       *time.Time
}

func newFixture(t *testing.T, opts ...DirectoryOption) *fixture {
	t.Helper()

	f := &fixture{
		accounts:    memory.NewAccountDirectory(),
		policies:    memory.NewPolicyStore(),
		invitations: memory.NewInvitationStore(),
		requests:    memory.NewAccessRequestStore(),
		notifier:    &recordingNotifier{},
		events:      &recordingPublisher{},
		metrics:     &recordingMetrics{},
		now:         time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	current := f.now
	f.clock = &current

	base := []DirectoryOption{
		WithLogger(zaptest.NewLogger(t)),
		WithNotifier(f.notifier),
		WithEventPublisher(f.events),
		WithAccessRequests(f.requests),
		WithMetrics(f.metrics),
		WithPasswordHasher(stubHasher{}),
		WithClock(func() time.Time { return *f.clock }),
		WithPageSize(2),
	}
	f.svc = NewDirectoryService(f.accounts, f.policies, f.invitations, append(base, opts...)...)
	return f
}

// rebuild swaps the account and policy stores the service writes through,
// keeping the fixture's invitations, clock and recorders.
func (f *fixture) rebuild(t *testing.T, accounts port.AccountDirectory, policies port.PolicyStore, opts ...DirectoryOption) {
	t.Helper()
	base := []DirectoryOption{
		WithLogger(zaptest.NewLogger(t)),
		WithNotifier(f.notifier),
		WithEventPublisher(f.events),
		WithAccessRequests(f.requests),
		WithMetrics(f.metrics),
		WithPasswordHasher(stubHasher{}),
		WithClock(func() time.Time { return *f.clock }),
	}
	f.svc = NewDirectoryService(accounts, policies, f.invitations, append(base, opts...)...)
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// seedUser creates an account with a profile and optional scope roles.
func (f *fixture) seedUser(t *testing.T, email string, roles []string, tenants []string, scopeRoles map[string]string) domain.Account {
	t.Helper()
	ctx := context.Background()

	account, err := f.accounts.CreateAccount(ctx, domain.NewAccount{
		Email:      email,
		Roles:      roles,
		TenantIDs:  tenants,
		IsVerified: true,
		Status:     domain.AccountStatusActive,
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", email, err)
	}
	name := email
	if _, err := f.accounts.UpdateProfile(ctx, account.ID, domain.ProfileUpdate{DisplayName: &name}); err != nil {
		t.Fatalf("seed profile %s: %v", email, err)
	}
	for scope, role := range scopeRoles {
		if err := f.policies.AssignRole(ctx, domain.RoleAssignment{UserID: account.ID, RoleID: role, Scope: scope}); err != nil {
			t.Fatalf("seed role %s: %v", email, err)
		}
	}
	return account
}

func (f *fixture) seedAdmin(t *testing.T, email, scope string) domain.Account {
	t.Helper()
	return f.seedUser(t, email, []string{domain.SystemRoleUser}, []string{scope}, map[string]string{scope: "tenant_admin"})
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
