package identity

import (
	"context"
	"fmt"
	"strings"

	"turfwar.org/internal/auth"
)

// Service wraps a Store with input validation and credential handling.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Store() Store { return s.store }

// Register validates the registration input, hashes the password and
// creates the account.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 64 {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") || len(email) > 120 {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{Username: username, Email: email, PasswordHash: hash}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate resolves a username/password pair to the account, or
// ErrNotFound when either is wrong. Callers must not distinguish the two
// failure modes in their responses.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// ChangePassword verifies the current credential before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, user *User, current, next string) error {
	if strings.TrimSpace(next) == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	if err := auth.VerifyPassword(user.PasswordHash, current); err != nil {
		return fmt.Errorf("%w: current password does not match", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.SetPassword(ctx, user.ID, hash)
}

// EnsureAdmin promotes the earliest-created user when no admin exists yet.
// Mirrors the bootstrap the production deployment relies on: the first
// registered account becomes the console administrator.
func (s *Service) EnsureAdmin(ctx context.Context) (*User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.IsAdmin {
			return nil, nil
		}
	}
	if len(users) == 0 {
		return nil, nil
	}
	first := users[0]
	for _, u := range users[1:] {
		if u.CreatedAt.Before(first.CreatedAt) {
			first = u
		}
	}
	if err := s.store.SetAdmin(ctx, first.ID, true); err != nil {
		return nil, err
	}
	first.IsAdmin = true
	return first, nil
}
