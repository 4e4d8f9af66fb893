package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrKeyIDMissing indicates the token header carries no kid.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrInvalidToken covers every verification failure surfaced to callers.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken is returned alongside ErrInvalidToken for tokens past exp.
	ErrExpiredToken = errors.New("jwt: token expired")
)

// AccessTokenClaims are the claims the directory expects from the issuing
// identity service. UserID identifies the acting user.
type AccessTokenClaims struct {
	Roles  []string `json:"roles,omitempty"`
	UserID string   `json:"uid"`
	jwt.RegisteredClaims
}

// JWTManager verifies RS256 access tokens and, when a signing key is present,
// issues them for local tooling.
type JWTManager struct {
	keys     KeyProvider
	issuer   string
	audience string
	now      func() time.Time
}

func NewJWTManager(keys KeyProvider, issuer, audience string) *JWTManager {
	return &JWTManager{
		keys:     keys,
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		now:      time.Now,
	}
}

// ParseAccessToken verifies signature, expiry, issuer and audience and returns the claims.
func (m *JWTManager) ParseAccessToken(raw string) (*AccessTokenClaims, error) {
	if m == nil || m.keys == nil {
		return nil, fmt.Errorf("jwt: key provider not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, ErrKeyIDMissing
		}
		return m.keys.VerificationKey(kid)
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrExpiredToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims.UserID = strings.TrimSpace(claims.UserID)
	if claims.UserID == "" {
		claims.UserID = strings.TrimSpace(claims.Subject)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	return claims, nil
}

// AccessTokenOptions configures SignAccessToken.
type AccessTokenOptions struct {
	UserID string
	Roles  []string
	TTL    time.Duration
}

const defaultAccessTokenTTL = 15 * time.Minute

// SignAccessToken issues a token with the provider's signing key.
func (m *JWTManager) SignAccessToken(opts AccessTokenOptions) (string, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	kid, key, err := m.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	now := m.now().UTC()

	claims := &AccessTokenClaims{
		Roles:  normalizeRoles(opts.Roles),
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

func normalizeRoles(input []string) []string {
	if len(input) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, role := range input {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
