package port

import (
	"context"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// AccountDirectory owns account and profile records.
// Lookups return repository.ErrNotFound for missing records.
type AccountDirectory interface {
	FindAccountByID(ctx context.Context, id string) (*domain.Account, error)
	// FindAccountByEmail matches case-insensitively.
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	CreateAccount(ctx context.Context, account domain.NewAccount) (domain.Account, error)
	GetProfile(ctx context.Context, accountID string) (*domain.Profile, error)
	// UpdateProfile creates the profile when it does not exist yet.
	UpdateProfile(ctx context.Context, accountID string, update domain.ProfileUpdate) (domain.Profile, error)
	// ListAccounts enumerates accounts in a stable order.
	ListAccounts(ctx context.Context, page domain.PageRequest) (domain.AccountPage, error)
	AddTenantMembership(ctx context.Context, accountID, tenantID string) (domain.Account, error)
	// DeleteAccount removes an account together with its profile.
	DeleteAccount(ctx context.Context, accountID string) error
}
