package postgres

import (
	"context"
	"errors"
	"strings"

	domain "github.com/partsdesk/api/internal/domain"
	platform "github.com/partsdesk/api/internal/platform/postgres"
	"github.com/partsdesk/api/internal/repositories"
)

// UserRepository persists accounts in PostgreSQL.
type UserRepository struct {
	uow *platform.UnitOfWork
}

// NewUserRepository constructs a UserRepository over the shared unit of work.
func NewUserRepository(uow *platform.UnitOfWork) (*UserRepository, error) {
	if uow == nil {
		return nil, errors.New("user repository: unit of work is required")
	}
	return &UserRepository{uow: uow}, nil
}

const userColumns = "id, email, hashed_password, is_admin, is_active, created_at, updated_at"

// Create inserts the account. A duplicate email maps to UserErrorDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const stmt = `
		INSERT INTO users (id, email, hashed_password, is_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.uow.Querier(ctx).Exec(ctx, stmt,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.HashedPassword,
		user.IsAdmin,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if platform.IsUniqueViolation(err) {
			return domain.User{}, &repositories.UserError{
				Op:      "users.create",
				Code:    repositories.UserErrorDuplicateEmail,
				Message: "email already registered",
				Err:     err,
			}
		}
		return domain.User{}, &repositories.UserError{
			Op:      "users.create",
			Code:    repositories.UserErrorUnknown,
			Message: "insert user",
			Err:     err,
		}
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return user, nil
}

// GetByID fetches an account by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const stmt = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.get(ctx, stmt, id)
}

// GetByEmail fetches an account by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const stmt = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.get(ctx, stmt, strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) get(ctx context.Context, stmt string, arg string) (domain.User, error) {
	var user domain.User
	row := r.uow.Querier(ctx).QueryRow(ctx, stmt, arg)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.IsAdmin,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if platform.IsNoRows(err) {
			return domain.User{}, &repositories.UserError{
				Op:      "users.get",
				Code:    repositories.UserErrorNotFound,
				Message: "user not found",
				Err:     err,
			}
		}
		return domain.User{}, &repositories.UserError{
			Op:      "users.get",
			Code:    repositories.UserErrorUnknown,
			Message: "query user",
			Err:     err,
		}
	}
	return user, nil
}
