package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/repository"
)

func TestAccountDirectoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	dir := NewAccountDirectory()

	created, err := dir.CreateAccount(ctx, domain.NewAccount{Email: " Ann@Example.com ", TenantIDs: []string{"t1"}})
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if created.Email != "ann@example.com" {
		t.Fatalf("expected normalised email, got %s", created.Email)
	}
	if created.Status != domain.AccountStatusActive {
		t.Fatalf("expected default active status, got %s", created.Status)
	}

	found, err := dir.FindAccountByEmail(ctx, "ANN@example.COM")
	if err != nil {
		t.Fatalf("FindAccountByEmail returned error: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, found.ID)
	}

	if _, err := dir.CreateAccount(ctx, domain.NewAccount{Email: "ann@example.com"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := dir.FindAccountByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountDirectoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	dir := NewAccountDirectory()

	created, _ := dir.CreateAccount(ctx, domain.NewAccount{Email: "a@x.com", TenantIDs: []string{"t1"}})
	found, _ := dir.FindAccountByID(ctx, created.ID)
	found.TenantIDs[0] = "mutated"

	again, _ := dir.FindAccountByID(ctx, created.ID)
	if again.TenantIDs[0] != "t1" {
		t.Fatalf("store leaked internal slice: %v", again.TenantIDs)
	}
}

func TestAccountDirectoryListAccountsPaging(t *testing.T) {
	ctx := context.Background()
	dir := NewAccountDirectory()

	var ids []string
	for i := 0; i < 5; i++ {
		acc, err := dir.CreateAccount(ctx, domain.NewAccount{Email: fmt.Sprintf("u%d@x.com", i)})
		if err != nil {
			t.Fatalf("CreateAccount returned error: %v", err)
		}
		ids = append(ids, acc.ID)
	}

	var seen []string
	cursor := ""
	pages := 0
	for {
		page, err := dir.ListAccounts(ctx, domain.PageRequest{Cursor: cursor, Limit: 2})
		if err != nil {
			t.Fatalf("ListAccounts returned error: %v", err)
		}
		pages++
		for _, acc := range page.Accounts {
			seen = append(seen, acc.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	if len(seen) != len(ids) {
		t.Fatalf("expected %d accounts, got %d", len(ids), len(seen))
	}
	for i := range ids {
		if seen[i] != ids[i] {
			t.Fatalf("enumeration order changed at %d", i)
		}
	}
}

func TestAccountDirectoryProfileUpsert(t *testing.T) {
	ctx := context.Background()
	dir := NewAccountDirectory()
	acc, _ := dir.CreateAccount(ctx, domain.NewAccount{Email: "a@x.com"})

	if _, err := dir.GetProfile(ctx, acc.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before profile exists, got %v", err)
	}

	name := "Ann"
	if _, err := dir.UpdateProfile(ctx, acc.ID, domain.ProfileUpdate{DisplayName: &name}); err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	prefs := domain.Preferences{Theme: "dark", CurrentTenantID: "t1"}
	updated, err := dir.UpdateProfile(ctx, acc.ID, domain.ProfileUpdate{Preferences: &prefs})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.DisplayName != "Ann" || updated.Preferences.Theme != "dark" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}

	if _, err := dir.UpdateProfile(ctx, "missing", domain.ProfileUpdate{}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
}

func TestAccountDirectoryAddTenantMembershipIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := NewAccountDirectory()
	acc, _ := dir.CreateAccount(ctx, domain.NewAccount{Email: "a@x.com", TenantIDs: []string{"t1"}})

	for i := 0; i < 2; i++ {
		updated, err := dir.AddTenantMembership(ctx, acc.ID, "t2")
		if err != nil {
			t.Fatalf("AddTenantMembership returned error: %v", err)
		}
		if len(updated.TenantIDs) != 2 {
			t.Fatalf("expected two tenants, got %v", updated.TenantIDs)
		}
	}
}

func TestAccountDirectoryDeleteAccount(t *testing.T) {
	ctx := context.Background()
	dir := NewAccountDirectory()

	ids := make([]string, 0, 3)
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		account, err := dir.CreateAccount(ctx, domain.NewAccount{Email: email})
		if err != nil {
			t.Fatalf("CreateAccount returned error: %v", err)
		}
		ids = append(ids, account.ID)
	}
	name := "Bee"
	if _, err := dir.UpdateProfile(ctx, ids[1], domain.ProfileUpdate{DisplayName: &name}); err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	if err := dir.DeleteAccount(ctx, ids[1]); err != nil {
		t.Fatalf("DeleteAccount returned error: %v", err)
	}
	if _, err := dir.GetProfile(ctx, ids[1]); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected profile to be removed, got %v", err)
	}
	if _, err := dir.FindAccountByEmail(ctx, "B@x.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected email to be released, got %v", err)
	}
	if err := dir.DeleteAccount(ctx, ids[1]); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	page, err := dir.ListAccounts(ctx, domain.PageRequest{Cursor: ids[0], Limit: 10})
	if err != nil {
		t.Fatalf("ListAccounts returned error: %v", err)
	}
	if len(page.Accounts) != 1 || page.Accounts[0].ID != ids[2] {
		t.Fatalf("expected only c after a, got %+v", page.Accounts)
	}

	if _, err := dir.CreateAccount(ctx, domain.NewAccount{Email: "b@x.com"}); err != nil {
		t.Fatalf("expected released email to be reusable, got %v", err)
	}
}
