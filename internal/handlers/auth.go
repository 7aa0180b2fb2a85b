package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/services"
)

const maxAuthBodySize = 4 * 1024

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type userPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type registerResponse struct {
	User  userPayload  `json:"user"`
	Token tokenPayload `json:"token"`
}

// AuthHandlers exposes registration, login and the current-user endpoint.
type AuthHandlers struct {
	authn    *auth.Authenticator
	identity services.IdentityService
}

// NewAuthHandlers constructs a new AuthHandlers instance.
func NewAuthHandlers(authn *auth.Authenticator, identity services.IdentityService) *AuthHandlers {
	return &AuthHandlers{
		authn:    authn,
		identity: identity,
	}
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	if h.authn != nil {
		r.With(h.authn.RequireBearer()).Get("/me", h.me)
	}
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("identity_service_unavailable", "identity service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req credentialsRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	user, token, err := h.identity.Register(ctx, services.RegisterCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeIdentityError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, registerResponse{
		User:  buildUserPayload(user),
		Token: buildTokenPayload(token),
	})
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("identity_service_unavailable", "identity service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req credentialsRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	token, err := h.identity.Login(ctx, services.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeIdentityError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildTokenPayload(token))
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("identity_service_unavailable", "identity service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	user, err := h.identity.GetUser(ctx, identity.UserID)
	if err != nil {
		writeIdentityError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

func buildUserPayload(user domain.User) userPayload {
	return userPayload{
		ID:        user.ID,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		IsActive:  user.IsActive,
		CreatedAt: formatTime(user.CreatedAt),
	}
}

func buildTokenPayload(token services.AuthToken) tokenPayload {
	return tokenPayload{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	}
}

func writeIdentityError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrIdentityInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrIdentityEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email already registered", http.StatusConflict))
	case errors.Is(err, services.ErrIdentityInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid credentials", http.StatusUnauthorized))
	case errors.Is(err, services.ErrIdentityUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("identity_error", "failed to process identity request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
