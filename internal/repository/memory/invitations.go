package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/infra/security"
	"github.com/arklim/workspace-directory/internal/repository"
)

// InvitationStore keeps invitations indexed by token hash. The pending
// uniqueness check and the insert happen under one lock.
type InvitationStore struct {
	mu          sync.RWMutex
	invitations map[string]domain.Invitation
	byToken     map[string]string
	order       []string
}

func NewInvitationStore() *InvitationStore {
	return &InvitationStore{
		invitations: make(map[string]domain.Invitation),
		byToken:     make(map[string]string),
	}
}

func (s *InvitationStore) CreateInvitation(_ context.Context, invitation domain.Invitation) (domain.Invitation, error) {
	tokenHash := security.HashToken(invitation.Token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invitations[invitation.ID]; exists {
		return domain.Invitation{}, repository.ErrDuplicate
	}
	if _, exists := s.byToken[tokenHash]; exists {
		return domain.Invitation{}, repository.ErrDuplicate
	}
	if invitation.IsPending() {
		for _, existing := range s.invitations {
			if existing.IsPending() &&
				existing.TargetTenantID == invitation.TargetTenantID &&
				strings.EqualFold(existing.Email, invitation.Email) {
				return domain.Invitation{}, repository.ErrDuplicate
			}
		}
	}

	stored := invitation
	stored.Token = ""
	s.invitations[stored.ID] = stored
	s.byToken[tokenHash] = stored.ID
	s.order = append(s.order, stored.ID)

	return stored, nil
}

func (s *InvitationStore) GetInvitationByToken(_ context.Context, token string) (*domain.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[security.HashToken(token)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	invitation := s.invitations[id]
	return &invitation, nil
}

func (s *InvitationStore) ListInvitationsByTenant(_ context.Context, tenantID string) ([]domain.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Invitation, 0)
	for _, id := range s.order {
		if inv := s.invitations[id]; inv.TargetTenantID == tenantID {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (s *InvitationStore) MarkAsAccepted(_ context.Context, id string, at time.Time) error {
	return s.transition(id, func(inv *domain.Invitation) {
		inv.Status = domain.InvitationStatusAccepted
		accepted := at
		inv.AcceptedAt = &accepted
	})
}

func (s *InvitationStore) MarkAsExpired(_ context.Context, id string) error {
	return s.transition(id, func(inv *domain.Invitation) {
		inv.Status = domain.InvitationStatusExpired
	})
}

func (s *InvitationStore) ReopenInvitation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if inv.Status != domain.InvitationStatusAccepted {
		return repository.ErrStateConflict
	}
	for _, other := range s.invitations {
		if other.IsPending() &&
			other.TargetTenantID == inv.TargetTenantID &&
			strings.EqualFold(other.Email, inv.Email) {
			return repository.ErrStateConflict
		}
	}
	inv.Status = domain.InvitationStatusPending
	inv.AcceptedAt = nil
	s.invitations[id] = inv
	return nil
}

// transition applies mutate only while the invitation is still pending.
func (s *InvitationStore) transition(id string, mutate func(*domain.Invitation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !inv.IsPending() {
		return repository.ErrStateConflict
	}
	mutate(&inv)
	s.invitations[id] = inv
	return nil
}
