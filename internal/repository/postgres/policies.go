package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// PolicyRepository implements port.PolicyStore using PostgreSQL.
type PolicyRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewPolicyRepository(exec pgExecutor) *PolicyRepository {
	return &PolicyRepository{exec: exec, builder: newBuilder()}
}

// AssignRole inserts the assignment; an identical existing grant is left as is.
func (r *PolicyRepository) AssignRole(ctx context.Context, assignment domain.RoleAssignment) error {
	stmt, args, err := r.builder.
		Insert(assignmentsTable).
		Columns("user_id", "role_id", "scope", "assigned_at").
		Values(assignment.UserID, assignment.RoleID, assignment.Scope, assignment.AssignedAt).
		Suffix("ON CONFLICT (user_id, role_id, scope) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role assignment sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert role assignment: %w", err)
	}
	return nil
}

func (r *PolicyRepository) GetUserAssignments(ctx context.Context, userID string) ([]domain.RoleAssignment, error) {
	stmt, args, err := r.builder.
		Select("user_id", "role_id", "scope", "assigned_at").
		From(assignmentsTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("assigned_at", "scope", "role_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role assignments sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select role assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]domain.RoleAssignment, 0)
	for rows.Next() {
		var a domain.RoleAssignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.Scope, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role assignments: %w", err)
	}
	return assignments, nil
}
