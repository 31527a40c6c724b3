package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/server/middleware"
)

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=64"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
}

// LoginRequest carries login credentials from a form or JSON body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserService provides registration, login and token subject lookup.
type UserService struct {
	store          Store
	passwordConfig *config.PasswordConfig
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(store Store, passwordConfig *config.PasswordConfig) *UserService {
	return &UserService{store: store, passwordConfig: passwordConfig}
}

// Register creates an account. Usernames are unique.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*db.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, &ErrValidation{Field: "Username", Message: "required"}
	}
	if limit := s.passwordConfig.MaxPasswordBytes(); len(req.Password) > limit {
		return nil, &ErrValidation{Field: "Password", Message: fmt.Sprintf("must be at most %d bytes", limit)}
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, &ErrUsernameTaken{Username: username}
	}

	hash, err := s.passwordConfig.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hash, req.Email)
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, db.ErrDuplicate) {
			return nil, &ErrUsernameTaken{Username: username}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login checks credentials. Unknown users and wrong passwords get the same error.
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*db.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !s.passwordConfig.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}
	return user, nil
}

// ResolveUser implements middleware.UserResolver.
func (s *UserService) ResolveUser(ctx context.Context, username string) (*middleware.Principal, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return &middleware.Principal{ID: user.ID, Username: user.Username}, nil
}
