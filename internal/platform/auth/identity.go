package auth

import (
	"context"
	"strings"
)

// Identity captures the authenticated principal extracted from a bearer token.
type Identity struct {
	UserID string
	Email  string
	Admin  bool
}

// HasEmail reports whether the identity matches the given email (case-insensitive).
func (i *Identity) HasEmail(email string) bool {
	if i == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(i.Email), strings.TrimSpace(email))
}

type contextKey string

const identityContextKey contextKey = "github.com/partsdesk/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
