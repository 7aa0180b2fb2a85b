package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/services"
)

type stubIdentityService struct {
	registerFn func(ctx context.Context, cmd services.RegisterCommand) (domain.User, services.AuthToken, error)
	loginFn    func(ctx context.Context, cmd services.LoginCommand) (services.AuthToken, error)
	getUserFn  func(ctx context.Context, id string) (domain.User, error)
}

func (s *stubIdentityService) Register(ctx context.Context, cmd services.RegisterCommand) (domain.User, services.AuthToken, error) {
	if s.registerFn == nil {
		return domain.User{}, services.AuthToken{}, services.ErrIdentityStorage
	}
	return s.registerFn(ctx, cmd)
}

func (s *stubIdentityService) Login(ctx context.Context, cmd services.LoginCommand) (services.AuthToken, error) {
	if s.loginFn == nil {
		return services.AuthToken{}, services.ErrIdentityInvalidCredentials
	}
	return s.loginFn(ctx, cmd)
}

func (s *stubIdentityService) GetUser(ctx context.Context, id string) (domain.User, error) {
	if s.getUserFn == nil {
		return domain.User{}, services.ErrIdentityUserNotFound
	}
	return s.getUserFn(ctx, id)
}

func TestRegisterEndpoint(t *testing.T) {
	authn, _ := newTestAuthenticator(t)
	svc := &stubIdentityService{
		registerFn: func(ctx context.Context, cmd services.RegisterCommand) (domain.User, services.AuthToken, error) {
			return domain.User{ID: "usr_1", Email: "tech@example.com", IsActive: true},
				services.AuthToken{AccessToken: "signed", TokenType: "Bearer", ExpiresIn: 1800}, nil
		},
	}

	r := chi.NewRouter()
	r.Route("/auth", NewAuthHandlers(authn, svc).Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"tech@example.com","password":"hunter22!"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Token struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		} `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.User.ID != "usr_1" || body.Token.TokenType != "Bearer" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	authn, _ := newTestAuthenticator(t)
	svc := &stubIdentityService{
		registerFn: func(ctx context.Context, cmd services.RegisterCommand) (domain.User, services.AuthToken, error) {
			return domain.User{}, services.AuthToken{}, services.ErrIdentityEmailTaken
		},
	}

	r := chi.NewRouter()
	r.Route("/auth", NewAuthHandlers(authn, svc).Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"tech@example.com","password":"hunter22!"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	authn, _ := newTestAuthenticator(t)
	r := chi.NewRouter()
	r.Route("/auth", NewAuthHandlers(authn, &stubIdentityService{}).Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"tech@example.com","password":"wrong"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "invalid_credentials" {
		t.Fatalf("error code = %v", body["error"])
	}
}

func TestMeEndpoint(t *testing.T) {
	authn, token := newTestAuthenticator(t)
	svc := &stubIdentityService{
		getUserFn: func(ctx context.Context, id string) (domain.User, error) {
			if id != "usr_tester" {
				t.Fatalf("lookup id = %q, want the token's user id", id)
			}
			return domain.User{ID: id, Email: "tech@example.com", IsActive: true}, nil
		},
	}

	r := chi.NewRouter()
	r.Route("/auth", NewAuthHandlers(authn, svc).Routes)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestMeEndpointRequiresToken(t *testing.T) {
	authn, _ := newTestAuthenticator(t)
	r := chi.NewRouter()
	r.Route("/auth", NewAuthHandlers(authn, &stubIdentityService{}).Routes)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}
