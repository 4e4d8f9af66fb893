package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/infra/security"
	"github.com/arklim/workspace-directory/internal/repository"
)

var invitationRowColumns = []string{
	"id", "email", "target_tenant_id", "target_role_id", "invited_by", "status", "expires_at", "created_at", "accepted_at",
}

func TestInvitationRepository_CreateStoresTokenHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewInvitationRepository(mock)
	now := time.Now().UTC()
	invitation := domain.Invitation{
		ID:              "inv-1",
		Email:           "Bob@X.com",
		TargetTenantID:  "acme",
		TargetRoleID:    "editor",
		InvitedByUserID: "admin-1",
		Token:           "raw-token",
		Status:          domain.InvitationStatusPending,
		ExpiresAt:       now.Add(24 * time.Hour),
		CreatedAt:       now,
	}

	mock.ExpectExec(`INSERT INTO directory\.invitations`).
		WithArgs("inv-1", "bob@x.com", "acme", "editor", "admin-1", security.HashToken("raw-token"), "pending", invitation.ExpiresAt, invitation.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	stored, err := repo.CreateInvitation(context.Background(), invitation)
	if err != nil {
		t.Fatalf("CreateInvitation returned error: %v", err)
	}
	if stored.Token != "" || stored.Email != "bob@x.com" {
		t.Fatalf("unexpected stored invitation %+v", stored)
	}

	mock.ExpectExec(`INSERT INTO directory\.invitations`).
		WithArgs("inv-1", "bob@x.com", "acme", "editor", "admin-1", security.HashToken("raw-token"), "pending", invitation.ExpiresAt, invitation.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	if _, err := repo.CreateInvitation(context.Background(), invitation); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvitationRepository_GetByToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewInvitationRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(invitationRowColumns).
		AddRow("inv-1", "bob@x.com", "acme", "editor", "admin-1", "pending", now.Add(time.Hour), now, nil)
	mock.ExpectQuery(`SELECT .* FROM directory\.invitations WHERE token_hash = \$1`).
		WithArgs(security.HashToken("raw-token")).
		WillReturnRows(rows)

	invitation, err := repo.GetInvitationByToken(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("GetInvitationByToken returned error: %v", err)
	}
	if invitation.ID != "inv-1" || !invitation.IsPending() || invitation.AcceptedAt != nil {
		t.Fatalf("unexpected invitation %+v", invitation)
	}

	mock.ExpectQuery(`SELECT .* FROM directory\.invitations`).
		WithArgs(security.HashToken("unknown")).
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetInvitationByToken(context.Background(), "unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvitationRepository_MarkAsAcceptedIsConditional(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewInvitationRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE directory\.invitations SET accepted_at = \$1, status = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(at, "accepted", "inv-1", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.MarkAsAccepted(context.Background(), "inv-1", at); err != nil {
		t.Fatalf("MarkAsAccepted returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE directory\.invitations`).
		WithArgs(at, "accepted", "inv-1", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("inv-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	if err := repo.MarkAsAccepted(context.Background(), "inv-1", at); !errors.Is(err, repository.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}

	mock.ExpectExec(`UPDATE directory\.invitations SET status = \$1`).
		WithArgs("expired", "ghost", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	if err := repo.MarkAsExpired(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvitationRepository_ReopenInvitation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewInvitationRepository(mock)

	mock.ExpectExec(`UPDATE directory\.invitations SET accepted_at = \$1, status = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(nil, "pending", "inv-1", "accepted").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.ReopenInvitation(context.Background(), "inv-1"); err != nil {
		t.Fatalf("ReopenInvitation returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE directory\.invitations`).
		WithArgs(nil, "pending", "inv-1", "accepted").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	if err := repo.ReopenInvitation(context.Background(), "inv-1"); !errors.Is(err, repository.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict when a newer pending invite exists, got %v", err)
	}

	mock.ExpectExec(`UPDATE directory\.invitations`).
		WithArgs(nil, "pending", "inv-2", "accepted").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("inv-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	if err := repo.ReopenInvitation(context.Background(), "inv-2"); !errors.Is(err, repository.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for a pending invitation, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvitationRepository_ListByTenant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewInvitationRepository(mock)
	now := time.Now().UTC()
	accepted := now.Add(-time.Minute)

	rows := pgxmock.NewRows(invitationRowColumns).
		AddRow("inv-1", "a@x.com", "acme", "editor", "admin-1", "accepted", now, now.Add(-time.Hour), &accepted).
		AddRow("inv-2", "b@x.com", "acme", "viewer", "admin-1", "pending", now.Add(time.Hour), now, nil)
	mock.ExpectQuery(`SELECT .* FROM directory\.invitations WHERE target_tenant_id = \$1 ORDER BY created_at, id`).
		WithArgs("acme").
		WillReturnRows(rows)

	list, err := repo.ListInvitationsByTenant(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListInvitationsByTenant returned error: %v", err)
	}
	if len(list) != 2 || list[0].AcceptedAt == nil || list[1].Status != domain.InvitationStatusPending {
		t.Fatalf("unexpected invitations %+v", list)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
