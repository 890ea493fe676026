package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"turfwar.org/internal/identity"
	"turfwar.org/internal/store/memory"
)

func TestRegisterValidation(t *testing.T) {
	svc := identity.NewService(memory.New().Users())
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "", "a@example.com", "hunter2"},
		{"blank username", "   ", "a@example.com", "hunter2"},
		{"bad email", "alice", "not-an-email", "hunter2"},
		{"empty password", "alice", "a@example.com", "  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.email, tc.password)
			if !errors.Is(err, identity.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	svc := identity.NewService(memory.New().Users())
	u, err := svc.Register(context.Background(), "alice", "  Alice@Example.COM ", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.PasswordHash == "" || u.PasswordHash == "hunter2" {
		t.Fatal("password not hashed")
	}
}

func TestAuthenticate(t *testing.T) {
	svc := identity.NewService(memory.New().Users())
	ctx := context.Background()
	if _, err := svc.Register(ctx, "bob", "bob@example.com", "secret-pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "bob", "secret-pw"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "bob", "wrong"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("wrong password should look like not-found, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "secret-pw"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := memory.New().Users()
	svc := identity.NewService(store)
	ctx := context.Background()
	u, err := svc.Register(ctx, "carol", "carol@example.com", "old-pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.ChangePassword(ctx, u, "bad-guess", "new-pw"); !errors.Is(err, identity.ErrInvalidInput) {
		t.Fatalf("wrong current password: %v", err)
	}
	fresh, err := store.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.ChangePassword(ctx, fresh, "old-pw", "new-pw"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "carol", "new-pw"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "carol", "old-pw"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatal("old password still accepted")
	}
}

func TestEnsureAdminPromotesEarliest(t *testing.T) {
	store := memory.New().Users()
	svc := identity.NewService(store)
	ctx := context.Background()

	// Empty store: nothing to promote.
	if promoted, err := svc.EnsureAdmin(ctx); err != nil || promoted != nil {
		t.Fatalf("empty store: promoted=%v err=%v", promoted, err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"second", "first"} {
		u := &identity.User{
			ID:           name,
			Username:     name,
			Email:        name + "@example.com",
			PasswordHash: "x",
			CreatedAt:    base.Add(time.Duration(1-i) * time.Hour),
		}
		if err := store.Create(ctx, u); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	promoted, err := svc.EnsureAdmin(ctx)
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if promoted == nil || promoted.Username != "first" {
		t.Fatalf("expected earliest account promoted, got %+v", promoted)
	}

	// Second call is a no-op once an admin exists.
	if again, err := svc.EnsureAdmin(ctx); err != nil || again != nil {
		t.Fatalf("second EnsureAdmin: promoted=%v err=%v", again, err)
	}
}
