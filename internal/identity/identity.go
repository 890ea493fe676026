package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("identity: not found")
	ErrConflict     = errors.New("identity: already exists")
	ErrInvalidInput = errors.New("identity: invalid input")
)

// User is an account record. FactionID is the only membership edge between
// users and factions; nil means the user belongs to no faction.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	FactionID    *string   `json:"faction_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store describes persistence operations for user accounts. Writes are
// unconditional: permission rules are applied by the authorization
// coordinator before a store method is called.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error
	SetPassword(ctx context.Context, userID, passwordHash string) error

	// Delete removes the user and everything it held: feature grants,
	// faction membership, and faction leadership. A led faction passes to
	// its longest-tenured remaining member, or is removed when the leader
	// was the last member. All in one transaction.
	Delete(ctx context.Context, userID string) error
}
