package domain

import "time"

// InvitationCreatedEvent represents the payload for directory.invitation.created messages.
type InvitationCreatedEvent struct {
	EventID      string
	InvitationID string
	Email        string
	TenantID     string
	RoleID       string
	InvitedBy    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// InvitationAcceptedEvent represents the payload for directory.invitation.accepted messages.
type InvitationAcceptedEvent struct {
	EventID        string
	InvitationID   string
	UserID         string
	TenantID       string
	RoleID         string
	AccountCreated bool
	AcceptedAt     time.Time
}

// UserCreatedEvent represents the payload for directory.user.created messages
// (administrator provisioning inside an existing scope).
type UserCreatedEvent struct {
	EventID   string
	UserID    string
	Email     string
	TenantID  string
	RoleID    string
	CreatedBy string
	CreatedAt time.Time
}

// UserProvisionedEvent represents the payload for directory.user.provisioned messages
// (self-registration with a personal scope).
type UserProvisionedEvent struct {
	EventID       string
	UserID        string
	Email         string
	PersonalScope string
	OwnerRole     string
	ProvisionedAt time.Time
}

// RoleAssignedEvent represents the payload for directory.role.assigned messages.
type RoleAssignedEvent struct {
	EventID    string
	UserID     string
	RoleID     string
	Scope      string
	AssignedBy string
	AssignedAt time.Time
}

// AccessRequestedEvent represents the payload for directory.access.requested messages.
type AccessRequestedEvent struct {
	EventID     string
	RequestID   string
	UserID      string
	Scope       string
	Reason      string
	RequestedAt time.Time
}
