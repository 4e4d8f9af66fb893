package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/repository"
)

const defaultListLimit = 100

// AccountDirectory keeps accounts and profiles in process memory.
// Enumeration follows insertion order.
type AccountDirectory struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	byEmail  map[string]string
	profiles map[string]domain.Profile
	order    []string
	position map[string]int
	now      func() time.Time
}

func NewAccountDirectory() *AccountDirectory {
	return &AccountDirectory{
		accounts: make(map[string]domain.Account),
		byEmail:  make(map[string]string),
		profiles: make(map[string]domain.Profile),
		position: make(map[string]int),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *AccountDirectory) FindAccountByID(_ context.Context, id string) (*domain.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	account, ok := d.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := cloneAccount(account)
	return &copied, nil
}

func (d *AccountDirectory) FindAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[emailKey(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := cloneAccount(d.accounts[id])
	return &copied, nil
}

func (d *AccountDirectory) CreateAccount(_ context.Context, input domain.NewAccount) (domain.Account, error) {
	key := emailKey(input.Email)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byEmail[key]; exists {
		return domain.Account{}, repository.ErrDuplicate
	}

	now := d.now()
	status := input.Status
	if status == "" {
		status = domain.AccountStatusActive
	}
	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        key,
		PasswordHash: input.PasswordHash,
		Roles:        append([]string(nil), input.Roles...),
		TenantIDs:    append([]string(nil), input.TenantIDs...),
		Capabilities: append([]string(nil), input.Capabilities...),
		IsVerified:   input.IsVerified,
		Is2FAEnabled: input.Is2FAEnabled,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	d.accounts[account.ID] = account
	d.byEmail[key] = account.ID
	d.position[account.ID] = len(d.order)
	d.order = append(d.order, account.ID)

	return cloneAccount(account), nil
}

func (d *AccountDirectory) GetProfile(_ context.Context, accountID string) (*domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	profile, ok := d.profiles[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := cloneProfile(profile)
	return &copied, nil
}

func (d *AccountDirectory) UpdateProfile(_ context.Context, accountID string, update domain.ProfileUpdate) (domain.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[accountID]; !ok {
		return domain.Profile{}, repository.ErrNotFound
	}

	profile, ok := d.profiles[accountID]
	if !ok {
		profile = domain.Profile{AccountID: accountID}
	}
	profile = update.Apply(profile)
	d.profiles[accountID] = cloneProfile(profile)

	return cloneProfile(profile), nil
}

// ListAccounts pages through accounts; the cursor is the last ID returned.
func (d *AccountDirectory) ListAccounts(_ context.Context, page domain.PageRequest) (domain.AccountPage, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	start := 0
	if page.Cursor != "" {
		pos, ok := d.position[page.Cursor]
		if !ok {
			return domain.AccountPage{}, repository.ErrNotFound
		}
		start = pos + 1
	}

	end := start + limit
	if end > len(d.order) {
		end = len(d.order)
	}

	result := domain.AccountPage{Accounts: make([]domain.Account, 0, end-start)}
	for _, id := range d.order[start:end] {
		result.Accounts = append(result.Accounts, cloneAccount(d.accounts[id]))
	}
	if end < len(d.order) && end > start {
		result.NextCursor = d.order[end-1]
	}
	return result, nil
}

func (d *AccountDirectory) AddTenantMembership(_ context.Context, accountID, tenantID string) (domain.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	account, ok := d.accounts[accountID]
	if !ok {
		return domain.Account{}, repository.ErrNotFound
	}
	if !account.BelongsTo(tenantID) {
		account.TenantIDs = append(append([]string(nil), account.TenantIDs...), tenantID)
		account.UpdatedAt = d.now()
		d.accounts[accountID] = account
	}
	return cloneAccount(account), nil
}

func (d *AccountDirectory) DeleteAccount(_ context.Context, accountID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	account, ok := d.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}

	delete(d.accounts, accountID)
	delete(d.byEmail, emailKey(account.Email))
	delete(d.profiles, accountID)

	pos := d.position[accountID]
	delete(d.position, accountID)
	d.order = append(d.order[:pos], d.order[pos+1:]...)
	for i := pos; i < len(d.order); i++ {
		d.position[d.order[i]] = i
	}
	return nil
}

func cloneAccount(a domain.Account) domain.Account {
	a.Roles = append([]string(nil), a.Roles...)
	a.TenantIDs = append([]string(nil), a.TenantIDs...)
	a.Capabilities = append([]string(nil), a.Capabilities...)
	return a
}

func cloneProfile(p domain.Profile) domain.Profile {
	p.AssociatedTenants = append([]domain.AssociatedTenant(nil), p.AssociatedTenants...)
	return p
}
