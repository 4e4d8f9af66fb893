package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// InviteTokenBytes is the amount of randomness behind every invitation token.
const InviteTokenBytes = 32

// GenerateHexToken returns byteLength random bytes encoded as lowercase hex.
func GenerateHexToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// GenerateInviteToken returns a fresh invitation token.
func GenerateInviteToken() (string, error) {
	return GenerateHexToken(InviteTokenBytes)
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
