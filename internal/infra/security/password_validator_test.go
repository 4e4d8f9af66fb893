package security

import (
	"errors"
	"testing"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

func TestDefaultPasswordValidatorSuccess(t *testing.T) {
	validator := DefaultPasswordValidator()

	password := "C0mplex!Passphrase#2025"
	if strength := zxcvbn.PasswordStrength(password, nil); strength.Score < defaultMinZxcvbnScore {
		t.Fatalf("test password unexpectedly weak: score=%d", strength.Score)
	}
	if err := validator.Validate(password, "alice@example.com"); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
}

func TestDefaultPasswordValidatorViolations(t *testing.T) {
	validator := DefaultPasswordValidator()

	assertViolation := func(password, expectedCode string) {
		t.Helper()
		err := validator.Validate(password)
		if err == nil {
			t.Fatalf("expected validation error for %s", expectedCode)
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected PasswordValidationError, got %T", err)
		}
		if vErr.Code != expectedCode {
			t.Fatalf("expected %s code, got %s", expectedCode, vErr.Code)
		}
	}

	assertViolation("Short1!", "min_length")
	assertViolation("lowercasepassword", "character_classes")
	assertViolation("Password123", "weak_password")
}

func TestNewPasswordPolicyRelaxed(t *testing.T) {
	validator := NewPasswordPolicy(PasswordPolicyConfig{MinLength: 4})

	if err := validator.Validate("abc"); err == nil {
		t.Fatal("expected min length violation")
	}
	if err := validator.Validate("abcd"); err != nil {
		t.Fatalf("expected relaxed policy to accept, got %v", err)
	}
}

func TestPasswordUserInputs(t *testing.T) {
	inputs := PasswordUserInputs(" Alice@Example.com ", "Alice", "", "Al")
	want := []string{"alice@example.com", "alice", "Alice"}
	if len(inputs) != len(want) {
		t.Fatalf("expected %v, got %v", want, inputs)
	}
	for i := range want {
		if inputs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, inputs)
		}
	}
}

func TestNilValidator(t *testing.T) {
	var v *PasswordValidator
	if err := v.Validate("anything"); err == nil {
		t.Fatal("expected error for nil validator")
	}
}
