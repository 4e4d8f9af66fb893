package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	uuid "github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/repository"
)

const defaultListLimit = 100

var accountColumns = []string{
	"id",
	"email",
	"password_hash",
	"roles",
	"tenant_ids",
	"capabilities",
	"is_verified",
	"is_2fa_enabled",
	"status",
	"created_at",
	"updated_at",
}

// AccountRepository implements port.AccountDirectory using PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: newBuilder(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{exec: tx, builder: r.builder, now: r.now}
}

func (r *AccountRepository) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}
	return r.scanOne(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *AccountRepository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Expr("lower(email) = lower(?)", strings.TrimSpace(email))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by email sql: %w", err)
	}
	return r.scanOne(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *AccountRepository) CreateAccount(ctx context.Context, input domain.NewAccount) (domain.Account, error) {
	now := r.now()
	status := input.Status
	if status == "" {
		status = domain.AccountStatusActive
	}
	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: input.PasswordHash,
		Roles:        nonNil(input.Roles),
		TenantIDs:    nonNil(input.TenantIDs),
		Capabilities: nonNil(input.Capabilities),
		IsVerified:   input.IsVerified,
		Is2FAEnabled: input.Is2FAEnabled,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stmt, args, err := r.builder.
		Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Email,
			account.PasswordHash,
			account.Roles,
			account.TenantIDs,
			account.Capabilities,
			account.IsVerified,
			account.Is2FAEnabled,
			string(account.Status),
			account.CreatedAt,
			account.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return domain.Account{}, fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, repository.ErrDuplicate
		}
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

// ListAccounts pages by id; the cursor is the last id of the previous page.
func (r *AccountRepository) ListAccounts(ctx context.Context, page domain.PageRequest) (domain.AccountPage, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		OrderBy("id").
		Limit(uint64(limit) + 1)
	if page.Cursor != "" {
		query = query.Where(squirrel.Gt{"id": page.Cursor})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return domain.AccountPage{}, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return domain.AccountPage{}, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0, limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return domain.AccountPage{}, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return domain.AccountPage{}, fmt.Errorf("iterate accounts: %w", err)
	}

	result := domain.AccountPage{Accounts: accounts}
	if len(accounts) > limit {
		result.Accounts = accounts[:limit]
		result.NextCursor = accounts[limit-1].ID
	}
	return result, nil
}

func (r *AccountRepository) AddTenantMembership(ctx context.Context, accountID, tenantID string) (domain.Account, error) {
	stmt, args, err := r.builder.
		Update(accountsTable).
		Set("tenant_ids", squirrel.Expr("CASE WHEN ?::text = ANY(tenant_ids) THEN tenant_ids ELSE array_append(tenant_ids, ?::text) END", tenantID, tenantID)).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"id": accountID}).
		Suffix("RETURNING " + strings.Join(accountColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Account{}, fmt.Errorf("build add tenant sql: %w", err)
	}

	account, err := r.scanOne(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return domain.Account{}, err
	}
	return *account, nil
}

// DeleteAccount relies on ON DELETE CASCADE for the profile and role assignments.
func (r *AccountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	stmt, args, err := r.builder.
		Delete(accountsTable).
		Where(squirrel.Eq{"id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) GetProfile(ctx context.Context, accountID string) (*domain.Profile, error) {
	stmt, args, err := r.builder.
		Select("account_id", "display_name", "associated_tenants", "preferences").
		From(profilesTable).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile sql: %w", err)
	}

	profile, err := scanProfile(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &profile, nil
}

// upsertProfileSQL creates the profile or merges the non-null fields into it.
const upsertProfileSQL = `INSERT INTO ` + profilesTable + ` AS p (account_id, display_name, associated_tenants, preferences, updated_at)
VALUES ($1, COALESCE($2::text, ''), COALESCE($3::jsonb, '[]'::jsonb), COALESCE($4::jsonb, '{}'::jsonb), $5)
ON CONFLICT (account_id) DO UPDATE SET
    display_name = COALESCE($2::text, p.display_name),
    associated_tenants = COALESCE($3::jsonb, p.associated_tenants),
    preferences = COALESCE($4::jsonb, p.preferences),
    updated_at = $5
RETURNING account_id, display_name, associated_tenants, preferences`

func (r *AccountRepository) UpdateProfile(ctx context.Context, accountID string, update domain.ProfileUpdate) (domain.Profile, error) {
	var (
		name        any
		tenantsJSON any
		prefsJSON   any
	)
	if update.DisplayName != nil {
		name = *update.DisplayName
	}
	if update.AssociatedTenants != nil {
		raw, err := json.Marshal(update.AssociatedTenants)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("encode associated tenants: %w", err)
		}
		tenantsJSON = string(raw)
	}
	if update.Preferences != nil {
		raw, err := json.Marshal(update.Preferences)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("encode preferences: %w", err)
		}
		prefsJSON = string(raw)
	}

	profile, err := scanProfile(r.exec.QueryRow(ctx, upsertProfileSQL, accountID, name, tenantsJSON, prefsJSON, r.now()))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Profile{}, repository.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return profile, nil
}

func (r *AccountRepository) scanOne(row pgx.Row) (*domain.Account, error) {
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &account, nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		account domain.Account
		status  string
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Roles,
		&account.TenantIDs,
		&account.Capabilities,
		&account.IsVerified,
		&account.Is2FAEnabled,
		&status,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return domain.Account{}, err
	}
	account.Status = domain.AccountStatus(status)
	return account, nil
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		profile    domain.Profile
		tenantsRaw []byte
		prefsRaw   []byte
	)
	if err := row.Scan(&profile.AccountID, &profile.DisplayName, &tenantsRaw, &prefsRaw); err != nil {
		return domain.Profile{}, err
	}
	if len(tenantsRaw) > 0 {
		if err := json.Unmarshal(tenantsRaw, &profile.AssociatedTenants); err != nil {
			return domain.Profile{}, fmt.Errorf("decode associated tenants: %w", err)
		}
	}
	if len(prefsRaw) > 0 {
		if err := json.Unmarshal(prefsRaw, &profile.Preferences); err != nil {
			return domain.Profile{}, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return profile, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
