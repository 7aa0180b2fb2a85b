package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/partsdesk/api/internal/platform/httpx"
)

// Authenticator guards routes behind bearer token verification.
type Authenticator struct {
	tokens *TokenManager
}

// NewAuthenticator constructs an Authenticator backed by the token manager.
func NewAuthenticator(tokens *TokenManager) (*Authenticator, error) {
	if tokens == nil {
		return nil, errors.New("authenticator: token manager is required")
	}
	return &Authenticator{tokens: tokens}, nil
}

// RequireBearer rejects requests without a valid Authorization: Bearer token
// and stores the verified identity on the request context.
func (a *Authenticator) RequireBearer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}

			identity, err := a.tokens.Verify(raw)
			if err != nil {
				code := "token_invalid"
				message := "invalid credentials"
				if errors.Is(err, ErrTokenExpired) {
					code = "token_expired"
					message = "token expired"
				}
				httpx.WriteError(ctx, w, httpx.NewError(code, message, http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, &identity)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
