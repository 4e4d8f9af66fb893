package domain

import "time"

// RoleAssignment grants a role to a user within a tenant scope.
type RoleAssignment struct {
	UserID     string
	RoleID     string
	Scope      string
	AssignedAt time.Time
}
