package domain

import "time"

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusPending   AccountStatus = "pending"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusDisabled  AccountStatus = "disabled"
)

// System-level roles carried on the account itself, independent of any scope.
const (
	SystemRoleUser      = "user"
	SystemRoleSuperuser = "superuser"
)

// Account mirrors the identity record owned by the account directory.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	TenantIDs    []string
	Capabilities []string
	IsVerified   bool
	Is2FAEnabled bool
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the account carries the given system role.
func (a Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSuperuser reports whether the account bypasses tenant scoping.
func (a Account) IsSuperuser() bool {
	return a.HasRole(SystemRoleSuperuser)
}

// BelongsTo reports whether the account is a member of the tenant.
func (a Account) BelongsTo(tenantID string) bool {
	for _, id := range a.TenantIDs {
		if id == tenantID {
			return true
		}
	}
	return false
}

// SharesTenantWith reports whether both accounts have at least one tenant in common.
func (a Account) SharesTenantWith(other Account) bool {
	if len(a.TenantIDs) == 0 || len(other.TenantIDs) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a.TenantIDs))
	for _, id := range a.TenantIDs {
		set[id] = struct{}{}
	}
	for _, id := range other.TenantIDs {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// HasCredentials reports whether a usable password has been established.
func (a Account) HasCredentials() bool {
	return a.PasswordHash != ""
}

// NewAccount carries the fields required to create an account.
type NewAccount struct {
	Email        string
	PasswordHash string
	Roles        []string
	TenantIDs    []string
	Capabilities []string
	IsVerified   bool
	Is2FAEnabled bool
	Status       AccountStatus
}

// PageRequest selects a window of accounts for cursor based enumeration.
type PageRequest struct {
	Cursor string
	Limit  int
}

// AccountPage is one window of an account enumeration. NextCursor is empty on the last page.
type AccountPage struct {
	Accounts   []Account
	NextCursor string
}
