package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/infra/security"
	"github.com/arklim/workspace-directory/internal/repository"
)

var invitationColumns = []string{
	"id",
	"email",
	"target_tenant_id",
	"target_role_id",
	"invited_by",
	"status",
	"expires_at",
	"created_at",
	"accepted_at",
}

// InvitationRepository implements port.InvitationStore using PostgreSQL.
// Only the SHA-256 hash of a token is persisted.
type InvitationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewInvitationRepository(exec pgExecutor) *InvitationRepository {
	return &InvitationRepository{exec: exec, builder: newBuilder()}
}

// CreateInvitation relies on the partial unique index over pending
// (lower(email), target_tenant_id) rows to reject concurrent duplicates.
func (r *InvitationRepository) CreateInvitation(ctx context.Context, invitation domain.Invitation) (domain.Invitation, error) {
	if invitation.Token == "" {
		return domain.Invitation{}, fmt.Errorf("invitation token is required")
	}

	stmt, args, err := r.builder.
		Insert(invitationsTable).
		Columns(
			"id",
			"email",
			"target_tenant_id",
			"target_role_id",
			"invited_by",
			"token_hash",
			"status",
			"expires_at",
			"created_at",
		).
		Values(
			invitation.ID,
			strings.ToLower(invitation.Email),
			invitation.TargetTenantID,
			invitation.TargetRoleID,
			invitation.InvitedByUserID,
			security.HashToken(invitation.Token),
			string(invitation.Status),
			invitation.ExpiresAt,
			invitation.CreatedAt,
		).
		ToSql()
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("build insert invitation sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.Invitation{}, repository.ErrDuplicate
		}
		return domain.Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}

	stored := invitation
	stored.Email = strings.ToLower(invitation.Email)
	stored.Token = ""
	return stored, nil
}

func (r *InvitationRepository) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	stmt, args, err := r.builder.
		Select(invitationColumns...).
		From(invitationsTable).
		Where(squirrel.Eq{"token_hash": security.HashToken(token)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select invitation sql: %w", err)
	}

	invitation, err := scanInvitation(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select invitation: %w", err)
	}
	return &invitation, nil
}

func (r *InvitationRepository) ListInvitationsByTenant(ctx context.Context, tenantID string) ([]domain.Invitation, error) {
	stmt, args, err := r.builder.
		Select(invitationColumns...).
		From(invitationsTable).
		Where(squirrel.Eq{"target_tenant_id": tenantID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list invitations sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	invitations := make([]domain.Invitation, 0)
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, invitation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return invitations, nil
}

func (r *InvitationRepository) MarkAsAccepted(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, domain.InvitationStatusPending, map[string]any{
		"status":      string(domain.InvitationStatusAccepted),
		"accepted_at": at,
	})
}

func (r *InvitationRepository) MarkAsExpired(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.InvitationStatusPending, map[string]any{
		"status": string(domain.InvitationStatusExpired),
	})
}

// ReopenInvitation fails with ErrStateConflict when a newer pending invitation
// for the same address and tenant took its place.
func (r *InvitationRepository) ReopenInvitation(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.InvitationStatusAccepted, map[string]any{
		"status":      string(domain.InvitationStatusPending),
		"accepted_at": nil,
	})
}

// transition updates a row only while it is in the from status. Zero affected rows
// means the invitation is missing or was already moved on by another caller.
func (r *InvitationRepository) transition(ctx context.Context, id string, from domain.InvitationStatus, changes map[string]any) error {
	stmt, args, err := r.builder.
		Update(invitationsTable).
		SetMap(changes).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build invitation transition sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrStateConflict
		}
		return fmt.Errorf("update invitation: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+invitationsTable+" WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check invitation: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStateConflict
}

func scanInvitation(row pgx.Row) (domain.Invitation, error) {
	var (
		invitation domain.Invitation
		status     string
		acceptedAt *time.Time
	)
	if err := row.Scan(
		&invitation.ID,
		&invitation.Email,
		&invitation.TargetTenantID,
		&invitation.TargetRoleID,
		&invitation.InvitedByUserID,
		&status,
		&invitation.ExpiresAt,
		&invitation.CreatedAt,
		&acceptedAt,
	); err != nil {
		return domain.Invitation{}, err
	}
	invitation.Status = domain.InvitationStatus(status)
	invitation.AcceptedAt = acceptedAt
	return invitation, nil
}
