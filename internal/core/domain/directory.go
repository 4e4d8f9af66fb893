package domain

import "time"

// UserComposite is the read model combining an account, its profile and its role assignments.
type UserComposite struct {
	Account     Account
	Profile     Profile
	Assignments []RoleAssignment
}

// AccessRequestStatus tracks manual review of scope access requests.
type AccessRequestStatus string

const AccessRequestPendingReview AccessRequestStatus = "pending_review"

// AccessRequest records a user's request to join a scope.
type AccessRequest struct {
	ID        string
	UserID    string
	Scope     string
	Reason    string
	Status    AccessRequestStatus
	CreatedAt time.Time
}
