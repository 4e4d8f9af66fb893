package domain

import "time"

// InvitationStatus tracks the lifecycle of an invitation.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusExpired  InvitationStatus = "expired"
)

// Invitation is a pending offer to join a tenant scope with a role.
// Token is only populated on the freshly created record; stores may persist a hash instead.
type Invitation struct {
	ID              string
	Email           string
	TargetTenantID  string
	TargetRoleID    string
	InvitedByUserID string
	Token           string
	ExpiresAt       time.Time
	Status          InvitationStatus
	CreatedAt       time.Time
	AcceptedAt      *time.Time
}

// IsPending reports whether the stored status still allows acceptance.
func (i Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}

// IsExpired reports whether the invitation is past its expiry at the reference time.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus folds expiry into the stored status.
func (i Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationStatusPending && i.IsExpired(now) {
		return InvitationStatusExpired
	}
	return i.Status
}

// InvitationNotice is what the notifier needs to deliver an invitation.
type InvitationNotice struct {
	InvitationID string
	Email        string
	Link         string
	TenantID     string
	RoleID       string
	InvitedBy    string
	ExpiresAt    time.Time
}
