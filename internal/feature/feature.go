package feature

import (
	"context"
	"errors"
)

// Feature names form a small fixed vocabulary. Grants outside it are
// rejected rather than stored.
const (
	FactionCreation   = "faction_creation"
	AdvancedStats     = "advanced_stats"
	FactionManagement = "faction_management"
	Leaderboard       = "leaderboard"
)

// All lists the known feature names in display order.
var All = []string{FactionCreation, AdvancedStats, FactionManagement, Leaderboard}

// Known reports whether the name belongs to the feature vocabulary.
func Known(name string) bool {
	for _, f := range All {
		if f == name {
			return true
		}
	}
	return false
}

var (
	ErrNotFound       = errors.New("feature: user not found")
	ErrUnknownFeature = errors.New("feature: unknown feature")
)

// BulkResult reports what a bulk update actually did. Skipped entries are
// not failures: the rest of the batch still commits.
type BulkResult struct {
	Applied      int      `json:"applied"`
	MissingUsers []string `json:"missing_users,omitempty"`
	DeniedGrants []string `json:"denied_grants,omitempty"`
}

// Store holds per-user feature grants under the sparse policy: setting a
// feature to true upserts a row, setting it to false deletes the row, and
// absence means disabled. A stored disabled row never exists.
type Store interface {
	Set(ctx context.Context, userID, name string, enabled bool) error
	IsEnabled(ctx context.Context, userID, name string) (bool, error)

	// ListForUser returns the full vocabulary with the user's current
	// enablement, so callers see explicit false for absent grants.
	ListForUser(ctx context.Context, userID string) (map[string]bool, error)

	// BulkUpdate applies a user-id -> feature -> enabled mapping in one
	// transaction. Unresolvable user IDs are skipped. Every entry is
	// skipped (recorded in DeniedGrants) unless the actor is an admin; in
	// particular no user may self-serve faction_creation.
	BulkUpdate(ctx context.Context, updates map[string]map[string]bool, actorIsAdmin bool) (BulkResult, error)
}
