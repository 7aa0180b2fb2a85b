package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	manager, err := NewTokenManager(TokenManagerDeps{
		Secret: "unit-test-secret",
		TTL:    10 * time.Minute,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	signed, err := manager.Issue(Identity{UserID: "usr_1", Email: "tech@example.com", Admin: true})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	identity, err := manager.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UserID != "usr_1" || identity.Email != "tech@example.com" || !identity.Admin {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestTokenExpiry(t *testing.T) {
	issuedAt := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	current := issuedAt
	manager, err := NewTokenManager(TokenManagerDeps{
		Secret: "unit-test-secret",
		TTL:    time.Minute,
		Clock:  func() time.Time { return current },
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	signed, err := manager.Issue(Identity{UserID: "usr_1", Email: "tech@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = issuedAt.Add(2 * time.Minute)
	if _, err := manager.Verify(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("error = %v, want expired", err)
	}
}

func TestVerifyExpiryUsesInjectedClock(t *testing.T) {
	// A token expired by wall-clock time must still verify when the
	// manager's clock sits inside the validity window.
	issuedAt := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	manager, err := NewTokenManager(TokenManagerDeps{
		Secret: "unit-test-secret",
		TTL:    time.Minute,
		Clock:  func() time.Time { return issuedAt },
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	signed, err := manager.Issue(Identity{UserID: "usr_1", Email: "tech@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := manager.Verify(signed); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsMissingExpiry(t *testing.T) {
	manager, err := NewTokenManager(TokenManagerDeps{Secret: "unit-test-secret"})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	claims := Claims{
		UserID: "usr_1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "tech@example.com",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-test-secret"))
	if err != nil {
		t.Fatalf("sign claims: %v", err)
	}

	if _, err := manager.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want invalid for missing expiry", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	manager, err := NewTokenManager(TokenManagerDeps{Secret: "unit-test-secret"})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	other, err := NewTokenManager(TokenManagerDeps{Secret: "a-different-secret"})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	signed, err := other.Issue(Identity{UserID: "usr_1", Email: "tech@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := manager.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want invalid", err)
	}
	if _, err := manager.Verify(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want invalid for empty token", err)
	}
}
