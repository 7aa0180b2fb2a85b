package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const defaultTokenTTL = 30 * time.Minute

var (
	// ErrTokenInvalid indicates the token failed signature or claim validation.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)

// Claims carries the identity claims encoded into issued tokens.
type Claims struct {
	UserID string `json:"uid"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 signed bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// TokenManagerDeps bundles construction parameters for a TokenManager.
type TokenManagerDeps struct {
	Secret string
	TTL    time.Duration
	Clock  func() time.Time
}

// NewTokenManager validates dependencies and constructs a TokenManager.
func NewTokenManager(deps TokenManagerDeps) (*TokenManager, error) {
	secret := strings.TrimSpace(deps.Secret)
	if secret == "" {
		return nil, errors.New("token manager: signing secret is required")
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
	}, nil
}

// TTL returns the lifetime applied to issued tokens.
func (m *TokenManager) TTL() time.Duration {
	if m == nil {
		return 0
	}
	return m.ttl
}

// Issue signs a token for the given identity. Subject is the account email.
func (m *TokenManager) Issue(identity Identity) (string, error) {
	if m == nil {
		return "", errors.New("token manager: not initialised")
	}
	now := m.clock().UTC()
	claims := Claims{
		UserID: identity.UserID,
		Admin:  identity.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the token signature and expiry and returns the identity.
func (m *TokenManager) Verify(raw string) (Identity, error) {
	if m == nil {
		return Identity{}, errors.New("token manager: not initialised")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	// The parser checks signature and algorithm only; time-based claims are
	// validated below against the injected clock.
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ExpiresAt == nil {
		return Identity{}, fmt.Errorf("%w: missing expiry claim", ErrTokenInvalid)
	}
	if !m.clock().UTC().Before(claims.ExpiresAt.Time) {
		return Identity{}, fmt.Errorf("%w: expired at %s", ErrTokenExpired, claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.UserID) == "" {
		return Identity{}, fmt.Errorf("%w: missing subject claims", ErrTokenInvalid)
	}

	return Identity{
		UserID: claims.UserID,
		Email:  claims.Subject,
		Admin:  claims.Admin,
	}, nil
}
