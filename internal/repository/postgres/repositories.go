package postgres

// Repositories groups the PostgreSQL directory stores.
type Repositories struct {
	Accounts       *AccountRepository
	Policies       *PolicyRepository
	Invitations    *InvitationRepository
	AccessRequests *AccessRequestRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Accounts:       NewAccountRepository(exec),
		Policies:       NewPolicyRepository(exec),
		Invitations:    NewInvitationRepository(exec),
		AccessRequests: NewAccessRequestRepository(exec),
	}
}
