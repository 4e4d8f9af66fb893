package domain

// TenantMembershipActive marks an associated tenant the user can switch into.
const TenantMembershipActive = "active"

// AssociatedTenant is the presentation view of a tenant the account belongs to.
type AssociatedTenant struct {
	TenantID    string `json:"tenantId"`
	DisplayName string `json:"name"`
	Status      string `json:"status"`
}

// Preferences holds per-user UI settings.
type Preferences struct {
	Theme           string `json:"theme,omitempty"`
	Notifications   bool   `json:"notifications"`
	CurrentTenantID string `json:"currentTenantId,omitempty"`
}

// Profile holds presentation data for an account.
type Profile struct {
	AccountID         string
	DisplayName       string
	AssociatedTenants []AssociatedTenant
	Preferences       Preferences
}

// HasTenant reports whether the tenant is already listed on the profile.
func (p Profile) HasTenant(tenantID string) bool {
	for _, t := range p.AssociatedTenants {
		if t.TenantID == tenantID {
			return true
		}
	}
	return false
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName       *string
	AssociatedTenants []AssociatedTenant
	Preferences       *Preferences
}

// Apply merges the update into the profile and returns the result.
func (u ProfileUpdate) Apply(p Profile) Profile {
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.AssociatedTenants != nil {
		p.AssociatedTenants = append([]AssociatedTenant(nil), u.AssociatedTenants...)
	}
	if u.Preferences != nil {
		p.Preferences = *u.Preferences
	}
	return p
}
