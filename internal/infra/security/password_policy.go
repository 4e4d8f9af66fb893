package security

import "strings"

const (
	defaultMinPasswordLength   = 10
	defaultMaxPasswordLength   = 256
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 3
)

// PasswordPolicyConfig tunes the built-in password policy.
type PasswordPolicyConfig struct {
	MinLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// DefaultPasswordPolicyConfig mirrors the defaults used by DefaultPasswordValidator.
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:           defaultMinPasswordLength,
		MinCharacterClasses: defaultMinCharacterClasses,
		MinStrengthScore:    defaultMinZxcvbnScore,
	}
}

// DefaultPasswordValidator returns the validator enforcing length, character
// class and zxcvbn strength checks.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordPolicy(DefaultPasswordPolicyConfig())
}

// NewPasswordPolicy builds a validator from cfg. Zero values fall back to defaults.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordValidator {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinPasswordLength
	}
	if cfg.MinCharacterClasses < 0 {
		cfg.MinCharacterClasses = 0
	}
	if cfg.MinStrengthScore < 0 {
		cfg.MinStrengthScore = 0
	}

	return NewPasswordValidator(
		MinLengthRule(cfg.MinLength),
		MaxLengthRule(defaultMaxPasswordLength),
		RequireCharacterClassesRule(cfg.MinCharacterClasses),
		RequirePasswordStrengthRule(cfg.MinStrengthScore),
	)
}

const minUserInputLength = 3

// PasswordUserInputs collects identifying values for strength checks.
// The local part of an email is included on its own so "alice" in
// "alice@example.com" is penalised. Values shorter than three characters
// are dropped since they match almost any password.
func PasswordUserInputs(email string, extra ...string) []string {
	inputs := make([]string, 0, len(extra)+2)
	add := func(value string) {
		if len([]rune(value)) >= minUserInputLength {
			inputs = append(inputs, value)
		}
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email != "" {
		add(email)
		if local, _, ok := strings.Cut(email, "@"); ok {
			add(local)
		}
	}
	for _, value := range extra {
		add(strings.TrimSpace(value))
	}
	return inputs
}
