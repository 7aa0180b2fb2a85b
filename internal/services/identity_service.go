package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/repositories"
)

var (
	// ErrIdentityInvalidInput signals the caller provided invalid arguments.
	ErrIdentityInvalidInput = errors.New("identity: invalid input")
	// ErrIdentityEmailTaken indicates another account already uses the email.
	ErrIdentityEmailTaken = errors.New("identity: email already registered")
	// ErrIdentityInvalidCredentials covers unknown accounts, wrong passwords
	// and deactivated accounts; callers cannot distinguish which.
	ErrIdentityInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrIdentityUserNotFound indicates the account does not exist.
	ErrIdentityUserNotFound = errors.New("identity: user not found")
	// ErrIdentityStorage indicates an unexpected persistence failure.
	ErrIdentityStorage = errors.New("identity: storage failure")
)

// IdentityServiceDeps bundles the collaborators required to construct an identity service.
type IdentityServiceDeps struct {
	Users       repositories.UserRepository
	Tokens      *auth.TokenManager
	Clock       func() time.Time
	IDGenerator func() string
}

type identityService struct {
	users  repositories.UserRepository
	tokens *auth.TokenManager
	clock  func() time.Time
	newID  func() string
}

// NewIdentityService wires dependencies into a concrete IdentityService implementation.
func NewIdentityService(deps IdentityServiceDeps) (IdentityService, error) {
	if deps.Users == nil {
		return nil, errors.New("identity service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("identity service: token manager is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &identityService{
		users:  deps.Users,
		tokens: deps.Tokens,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *identityService) Register(ctx context.Context, cmd RegisterCommand) (domain.User, AuthToken, error) {
	email, err := normaliseEmail(cmd.Email)
	if err != nil {
		return domain.User{}, AuthToken{}, err
	}

	hashed, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return domain.User{}, AuthToken{}, fmt.Errorf("%w: %v", ErrIdentityInvalidInput, err)
	}

	now := s.clock()
	user := domain.User{
		ID:             "usr_" + s.newID(),
		Email:          email,
		HashedPassword: hashed,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		if isUserCode(err, repositories.UserErrorDuplicateEmail) {
			return domain.User{}, AuthToken{}, fmt.Errorf("%w: %s", ErrIdentityEmailTaken, email)
		}
		return domain.User{}, AuthToken{}, fmt.Errorf("%w: create user: %v", ErrIdentityStorage, err)
	}

	token, err := s.issueToken(created)
	if err != nil {
		return domain.User{}, AuthToken{}, err
	}
	return created, token, nil
}

func (s *identityService) Login(ctx context.Context, cmd LoginCommand) (AuthToken, error) {
	email, err := normaliseEmail(cmd.Email)
	if err != nil {
		return AuthToken{}, err
	}
	if cmd.Password == "" {
		return AuthToken{}, fmt.Errorf("%w: password is required", ErrIdentityInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isUserCode(err, repositories.UserErrorNotFound) {
			return AuthToken{}, ErrIdentityInvalidCredentials
		}
		return AuthToken{}, fmt.Errorf("%w: load user: %v", ErrIdentityStorage, err)
	}
	if !user.IsActive {
		return AuthToken{}, ErrIdentityInvalidCredentials
	}
	if err := auth.VerifyPassword(user.HashedPassword, cmd.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return AuthToken{}, ErrIdentityInvalidCredentials
		}
		return AuthToken{}, fmt.Errorf("%w: verify password: %v", ErrIdentityStorage, err)
	}

	return s.issueToken(user)
}

func (s *identityService) GetUser(ctx context.Context, id string) (domain.User, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required", ErrIdentityInvalidInput)
	}
	user, err := s.users.GetByID(ctx, trimmed)
	if err != nil {
		if isUserCode(err, repositories.UserErrorNotFound) {
			return domain.User{}, ErrIdentityUserNotFound
		}
		return domain.User{}, fmt.Errorf("%w: load user: %v", ErrIdentityStorage, err)
	}
	return user, nil
}

func (s *identityService) issueToken(user domain.User) (AuthToken, error) {
	signed, err := s.tokens.Issue(auth.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Admin:  user.IsAdmin,
	})
	if err != nil {
		return AuthToken{}, fmt.Errorf("%w: issue token: %v", ErrIdentityStorage, err)
	}
	return AuthToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.TTL() / time.Second),
	}, nil
}

func isUserCode(err error, code repositories.UserErrorCode) bool {
	var userErr *repositories.UserError
	return errors.As(err, &userErr) && userErr.Code == code
}

func normaliseEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrIdentityInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: malformed email", ErrIdentityInvalidInput)
	}
	return email, nil
}
