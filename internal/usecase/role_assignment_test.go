package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

func TestAssignRoleSecurely(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdmin(t, "admin@x.com", "acme")
	target := f.seedUser(t, "t@x.com", []string{domain.SystemRoleUser}, []string{"acme"}, nil)
	ctx := context.Background()

	if err := f.svc.AssignRoleSecurely(ctx, AssignRoleInput{ActorID: admin.ID, TargetUserID: target.ID, RoleID: "editor", Scope: "acme"}); err != nil {
		t.Fatalf("AssignRoleSecurely returned error: %v", err)
	}

	assignments, _ := f.policies.GetUserAssignments(ctx, target.ID)
	if len(assignments) != 1 || assignments[0].RoleID != "editor" || assignments[0].Scope != "acme" {
		t.Fatalf("unexpected assignments %+v", assignments)
	}
	if len(f.events.rolesAssigned) != 1 || f.events.rolesAssigned[0].AssignedBy != admin.ID {
		t.Fatalf("expected role assigned event, got %+v", f.events.rolesAssigned)
	}
	if got := f.metrics.outcomes["assign_role"]; len(got) != 1 || got[0] != "success" {
		t.Fatalf("expected success metric, got %v", got)
	}
}

func TestAssignRoleSecurelyRejections(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdmin(t, "admin@x.com", "acme")
	target := f.seedUser(t, "t@x.com", []string{domain.SystemRoleUser}, []string{"acme"}, nil)
	ctx := context.Background()

	err := f.svc.AssignRoleSecurely(ctx, AssignRoleInput{ActorID: target.ID, TargetUserID: admin.ID, RoleID: "editor", Scope: "acme"})
	assertErrorIs(t, err, ErrForbidden)

	err = f.svc.AssignRoleSecurely(ctx, AssignRoleInput{ActorID: admin.ID, TargetUserID: target.ID, RoleID: "editor", Scope: "other"})
	assertErrorIs(t, err, ErrForbidden)

	err = f.svc.AssignRoleSecurely(ctx, AssignRoleInput{ActorID: admin.ID, TargetUserID: "ghost", RoleID: "editor", Scope: "acme"})
	assertErrorIs(t, err, ErrAccountNotFound)

	err = f.svc.AssignRoleSecurely(ctx, AssignRoleInput{ActorID: admin.ID, TargetUserID: target.ID, Scope: "acme"})
	assertErrorIs(t, err, ErrInvalidInput)

	assignments, _ := f.policies.GetUserAssignments(ctx, target.ID)
	if len(assignments) != 0 {
		t.Fatalf("rejected calls must not assign, got %+v", assignments)
	}
	if got := f.metrics.outcomes["assign_role"]; len(got) != 4 || got[0] != "forbidden" || got[2] != "not_found" || got[3] != "invalid" {
		t.Fatalf("unexpected outcomes %v", got)
	}
}

func TestAssignRoleSecurelyHonoursManagingRoles(t *testing.T) {
	f := newFixture(t, WithManagingRoles("steward"))
	steward := f.seedUser(t, "s@x.com", []string{domain.SystemRoleUser}, []string{"acme"}, map[string]string{"acme": "steward"})
	admin := f.seedAdmin(t, "admin@x.com", "acme")
	target := f.seedUser(t, "t@x.com", []string{domain.SystemRoleUser}, []string{"acme"}, nil)
	ctx := context.Background()

	if err := f.svc.AssignRoleSecurely(ctx, AssignRoleInput{ActorID: steward.ID, TargetUserID: target.ID, RoleID: "editor", Scope: "acme"}); err != nil {
		t.Fatalf("steward should manage acme, got %v", err)
	}
	err := f.svc.AssignRoleSecurely(ctx, AssignRoleInput{ActorID: admin.ID, TargetUserID: target.ID, RoleID: "editor", Scope: "acme"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("tenant_admin is not managing under custom roles, got %v", err)
	}
}

func TestRequestAccessToScope(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "u@x.com", []string{domain.SystemRoleUser}, nil, nil)
	ctx := context.Background()

	request, err := f.svc.RequestAccessToScope(ctx, AccessRequestInput{UserID: user.ID, Scope: "acme", Reason: "  joining the team "})
	if err != nil {
		t.Fatalf("RequestAccessToScope returned error: %v", err)
	}
	if request.Status != domain.AccessRequestPendingReview || request.Reason != "joining the team" {
		t.Fatalf("unexpected request %+v", request)
	}

	stored, _ := f.requests.ListAccessRequestsByScope(ctx, "acme")
	if len(stored) != 1 || stored[0].ID != request.ID {
		t.Fatalf("expected request to be recorded, got %+v", stored)
	}
	if len(f.events.accessRequested) != 1 {
		t.Fatalf("expected access requested event, got %d", len(f.events.accessRequested))
	}

	assignments, _ := f.policies.GetUserAssignments(ctx, user.ID)
	if len(assignments) != 0 {
		t.Fatal("access requests must not grant anything")
	}

	_, err = f.svc.RequestAccessToScope(ctx, AccessRequestInput{UserID: "ghost", Scope: "acme"})
	assertErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.RequestAccessToScope(ctx, AccessRequestInput{UserID: user.ID})
	assertErrorIs(t, err, ErrInvalidInput)
}
