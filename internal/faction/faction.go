package faction

import (
	"context"
	"errors"
	"time"

	"turfwar.org/internal/identity"
)

var (
	ErrNotFound          = errors.New("faction: not found")
	ErrNameTaken         = errors.New("faction: name already exists")
	ErrAlreadyMember     = errors.New("faction: already in a faction")
	ErrNotInFaction      = errors.New("faction: not in a faction")
	ErrLeaderCannotLeave = errors.New("faction: leader must transfer leadership before leaving")
	ErrInvalidCode       = errors.New("faction: invalid invitation code")
	ErrNotLeader         = errors.New("faction: requester is not the leader")
	ErrNotMember         = errors.New("faction: target is not a member")
)

// Faction is a named group with one leader. The leader is referenced by
// stable user ID; LeaderUsername is a denormalized display copy updated
// whenever leadership moves.
type Faction struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	InvitationCode string    `json:"-"`
	LeaderID       string    `json:"-"`
	LeaderUsername string    `json:"leader"`
	CreatedAt      time.Time `json:"created_at"`
}

// Member is the projection of a user exposed in member listings.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Details is the faction view returned to members. InvitationCode is only
// populated for the leader; it is a leader-only secret.
type Details struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Leader         string `json:"leader"`
	MemberCount    int    `json:"member_count"`
	InvitationCode string `json:"invitation_code,omitempty"`
}

// Store manages faction records and the membership edge on users. Every
// mutation is one transaction: either all of its writes land or none do.
// Permission rules (who may create or delete) are the authorization
// coordinator's job; state invariants (uniqueness, membership, leadership)
// are enforced here.
type Store interface {
	// Create makes a faction led by the requester, generating a unique
	// invitation code and setting the requester's membership in the same
	// transaction. Fails with ErrNameTaken or ErrAlreadyMember.
	Create(ctx context.Context, name string, requester *identity.User) (*Faction, error)

	// Join adds the requester to the faction matching the invitation code.
	Join(ctx context.Context, code string, requester *identity.User) (*Faction, error)

	// Leave clears the requester's membership. Leaders must transfer
	// leadership first.
	Leave(ctx context.Context, requester *identity.User) error

	// Transfer reassigns leadership to another current member. Only the
	// current leader may call it.
	Transfer(ctx context.Context, requester *identity.User, newLeaderUsername string) (*Faction, error)

	// Delete clears every member's faction reference and removes the
	// faction record.
	Delete(ctx context.Context, factionID string) error

	FindByID(ctx context.Context, id string) (*Faction, error)
	Members(ctx context.Context, factionID string) ([]Member, error)
}

// DetailsFor assembles the member-facing view. Whether the invitation
// code may be revealed is the authorization coordinator's call; callers
// pass its verdict in includeCode.
func DetailsFor(f *Faction, memberCount int, includeCode bool) Details {
	d := Details{
		ID:          f.ID,
		Name:        f.Name,
		Leader:      f.LeaderUsername,
		MemberCount: memberCount,
	}
	if includeCode {
		d.InvitationCode = f.InvitationCode
	}
	return d
}
