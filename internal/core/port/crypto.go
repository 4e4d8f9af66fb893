package port

// PasswordPolicyValidator enforces password strength requirements.
// Inputs are user supplied strings (email, display name) the password must not resemble.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// PasswordHasher hashes secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
}
