package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/repository"
)

// AccessRequestRepository implements port.AccessRequestStore using PostgreSQL.
type AccessRequestRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewAccessRequestRepository(exec pgExecutor) *AccessRequestRepository {
	return &AccessRequestRepository{exec: exec, builder: newBuilder()}
}

func (r *AccessRequestRepository) CreateAccessRequest(ctx context.Context, request domain.AccessRequest) error {
	stmt, args, err := r.builder.
		Insert(accessRequestsTable).
		Columns("id", "user_id", "scope", "reason", "status", "created_at").
		Values(request.ID, request.UserID, request.Scope, request.Reason, string(request.Status), request.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert access request sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

func (r *AccessRequestRepository) ListAccessRequestsByScope(ctx context.Context, scope string) ([]domain.AccessRequest, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "scope", "reason", "status", "created_at").
		From(accessRequestsTable).
		Where(squirrel.Eq{"scope": scope}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list access requests sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	defer rows.Close()

	requests := make([]domain.AccessRequest, 0)
	for rows.Next() {
		var (
			request domain.AccessRequest
			status  string
		)
		if err := rows.Scan(&request.ID, &request.UserID, &request.Scope, &request.Reason, &status, &request.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		request.Status = domain.AccessRequestStatus(status)
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}
	return requests, nil
}
