package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password, optionally against user-supplied context
// such as the email or display name.
type PasswordRule interface {
	Validate(password string, userInputs []string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string, userInputs []string) error

func (f PasswordRuleFunc) Validate(password string, userInputs []string) error {
	return f(password, userInputs)
}

// PasswordValidator applies a sequence of password rules and reports the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate satisfies port.PasswordPolicyValidator.
func (v *PasswordValidator) Validate(password string, userInputs ...string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password, userInputs); err != nil {
			return err
		}
	}
	return nil
}

func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// MaxLengthRule bounds the input handed to the hasher.
func MaxLengthRule(max int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		if max > 0 && len([]rune(password)) > max {
			return &PasswordValidationError{
				Code:    "max_length",
				Message: fmt.Sprintf("password must be at most %d characters long", max),
			}
		}
		return nil
	})
}

// RequireCharacterClassesRule counts upper, lower, digit and symbol classes.
func RequireCharacterClassesRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		if min <= 0 {
			return nil
		}

		var upper, lower, digit, symbol bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			case unicode.IsSymbol(r) || unicode.IsPunct(r):
				symbol = true
			}
		}

		classes := 0
		for _, present := range []bool{upper, lower, digit, symbol} {
			if present {
				classes++
			}
		}
		if classes >= min {
			return nil
		}

		return &PasswordValidationError{
			Code:    "character_classes",
			Message: fmt.Sprintf("password must include at least %d character types", min),
		}
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score. User inputs are
// passed to zxcvbn so passwords derived from the email or name score lower.
func RequirePasswordStrengthRule(minScore int) PasswordRule {
	return PasswordRuleFunc(func(password string, userInputs []string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}
