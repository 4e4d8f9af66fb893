package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/core/port"
)

//go:embed model.conf
var modelContent string

// PolicyStore keeps scoped role assignments as casbin grouping rules of the
// form (user, role, scope). Casbin rules carry no timestamps, so grant times
// are tracked alongside the enforcer.
type PolicyStore struct {
	enforcer *casbin.SyncedEnforcer

	mu         sync.RWMutex
	assignedAt map[string]time.Time
}

// NewPolicyStore builds an in-process RBAC-with-domains enforcer.
func NewPolicyStore() (*PolicyStore, error) {
	m, err := model.NewModelFromString(modelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	return &PolicyStore{enforcer: enforcer, assignedAt: make(map[string]time.Time)}, nil
}

// AllowRole grants every holder of role the action on obj in any scope.
func (s *PolicyStore) AllowRole(role, obj, act string) error {
	if _, err := s.enforcer.AddPolicy(role, "*", obj, act); err != nil {
		return fmt.Errorf("add casbin policy: %w", err)
	}
	return nil
}

// Enforce reports whether userID may perform act on obj inside scope.
func (s *PolicyStore) Enforce(userID, scope, obj, act string) (bool, error) {
	allowed, err := s.enforcer.Enforce(userID, scope, obj, act)
	if err != nil {
		return false, fmt.Errorf("casbin enforce: %w", err)
	}
	return allowed, nil
}

func (s *PolicyStore) AssignRole(ctx context.Context, assignment domain.RoleAssignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	added, err := s.enforcer.AddRoleForUserInDomain(assignment.UserID, assignment.RoleID, assignment.Scope)
	if err != nil {
		return fmt.Errorf("add casbin grouping policy: %w", err)
	}
	if !added {
		return nil
	}

	s.mu.Lock()
	s.assignedAt[assignmentKey(assignment.UserID, assignment.RoleID, assignment.Scope)] = assignment.AssignedAt
	s.mu.Unlock()
	return nil
}

func (s *PolicyStore) GetUserAssignments(ctx context.Context, userID string) ([]domain.RoleAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rules, err := s.enforcer.GetFilteredGroupingPolicy(0, userID)
	if err != nil {
		return nil, fmt.Errorf("read casbin grouping policy: %w", err)
	}

	s.mu.RLock()
	assignments := make([]domain.RoleAssignment, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		assignments = append(assignments, domain.RoleAssignment{
			UserID:     rule[0],
			RoleID:     rule[1],
			Scope:      rule[2],
			AssignedAt: s.assignedAt[assignmentKey(rule[0], rule[1], rule[2])],
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(assignments, func(i, j int) bool {
		return assignments[i].AssignedAt.Before(assignments[j].AssignedAt)
	})
	return assignments, nil
}

var (
	_ port.PolicyStore     = (*PolicyStore)(nil)
	_ port.ScopeAuthorizer = (*PolicyStore)(nil)
)

func assignmentKey(userID, roleID, scope string) string {
	return userID + "\x00" + roleID + "\x00" + scope
}
