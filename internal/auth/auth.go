// Package auth provisions user accounts and verifies credentials. Stored
// rows carry a bcrypt password hash and an opaque session token.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/store"
)

// ErrInvalidCredentials is returned when a login's username or password does
// not check out. Callers get no hint which one was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Service manages user accounts.
type Service struct {
	users store.UserStore
}

// NewService creates an auth service backed by the given user store.
func NewService(users store.UserStore) *Service {
	return &Service{users: users}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("Register: hashing password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	return user, nil
}

// Login checks the password against the stored hash and issues a fresh
// session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.users.UpdateUserToken(ctx, username, token); err != nil {
		return "", fmt.Errorf("Login: storing token: %w", err)
	}
	return token, nil
}

// Verify reports whether token is the current session token for username.
func (s *Service) Verify(ctx context.Context, username, token string) (bool, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		return false, fmt.Errorf("Verify: %w", err)
	}
	return token != "" && user.Token == token, nil
}
