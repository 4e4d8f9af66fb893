package memory

import (
	"context"
	"sync"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/repository"
)

// AccessRequestStore keeps access requests grouped by scope.
type AccessRequestStore struct {
	mu       sync.RWMutex
	ids      map[string]struct{}
	requests map[string][]domain.AccessRequest
}

func NewAccessRequestStore() *AccessRequestStore {
	return &AccessRequestStore{
		ids:      make(map[string]struct{}),
		requests: make(map[string][]domain.AccessRequest),
	}
}

func (s *AccessRequestStore) CreateAccessRequest(_ context.Context, request domain.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[request.ID]; exists {
		return repository.ErrDuplicate
	}
	s.ids[request.ID] = struct{}{}
	s.requests[request.Scope] = append(s.requests[request.Scope], request)
	return nil
}

func (s *AccessRequestStore) ListAccessRequestsByScope(_ context.Context, scope string) ([]domain.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.AccessRequest{}, s.requests[scope]...), nil
}
