package memory

import (
	"context"
	"sync"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// PolicyStore keeps role assignments per user. Re-assigning an identical
// (role, scope) pair is a no-op.
type PolicyStore struct {
	mu          sync.RWMutex
	assignments map[string][]domain.RoleAssignment
}

func NewPolicyStore() *PolicyStore {
	return &PolicyStore{assignments: make(map[string][]domain.RoleAssignment)}
}

func (s *PolicyStore) AssignRole(_ context.Context, assignment domain.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.assignments[assignment.UserID] {
		if existing.RoleID == assignment.RoleID && existing.Scope == assignment.Scope {
			return nil
		}
	}
	s.assignments[assignment.UserID] = append(s.assignments[assignment.UserID], assignment)
	return nil
}

func (s *PolicyStore) GetUserAssignments(_ context.Context, userID string) ([]domain.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.RoleAssignment{}, s.assignments[userID]...), nil
}
