// Package authz is the single decision point for every privileged action.
// Handlers ask Decide before touching a registry; the registries themselves
// perform unconditional writes once a request has been authorized.
package authz

import (
	"context"
	"errors"
	"fmt"

	"turfwar.org/internal/feature"
	"turfwar.org/internal/identity"
)

var (
	ErrPermissionDenied = errors.New("authz: permission denied")

	// Self-targeting guards are authorization failures, not validation
	// failures: an admin is authenticated and well-formed, just not
	// allowed to escalate or erase their own account.
	ErrSelfModification = fmt.Errorf("%w: cannot change own admin status", ErrPermissionDenied)
	ErrSelfDeletion     = fmt.Errorf("%w: cannot delete own account", ErrPermissionDenied)
)

// Action names a privileged operation in the rule table.
type Action string

const (
	ActionToggleAdmin       Action = "user.toggle_admin"
	ActionDeleteUser        Action = "user.delete"
	ActionListUsers         Action = "user.list"
	ActionCreateFaction     Action = "faction.create"
	ActionDeleteFaction     Action = "faction.delete"
	ActionGrantFeature      Action = "feature.grant"
	ActionBulkUpdateGrants  Action = "feature.bulk_update"
	ActionViewInvitation    Action = "faction.view_invitation"
	ActionViewAdvancedStats Action = "stats.view_advanced"
	ActionViewLeaderboard   Action = "leaderboard.view"
)

// Request carries the target of an action where the rule needs one.
type Request struct {
	Action Action

	// TargetUserID identifies the user acted upon (toggle admin, delete).
	TargetUserID string

	// Feature names the grant for ActionGrantFeature.
	Feature string

	// FactionLeaderID is the leader of the faction in question for
	// ActionViewInvitation.
	FactionLeaderID string
}

// Coordinator evaluates the rule table. It consults the feature store for
// grant-gated actions; everything else is decided from the actor record
// alone.
type Coordinator struct {
	features feature.Store
}

func New(features feature.Store) *Coordinator {
	return &Coordinator{features: features}
}

// Decide returns nil when the actor may perform the action, otherwise an
// error wrapping ErrPermissionDenied. Denials are distinct from not-found
// and validation failures so transports can map them to 403.
func (c *Coordinator) Decide(ctx context.Context, actor *identity.User, req Request) error {
	if actor == nil {
		return ErrPermissionDenied
	}
	switch req.Action {
	case ActionToggleAdmin:
		if !actor.IsAdmin {
			return ErrPermissionDenied
		}
		if actor.ID == req.TargetUserID {
			return ErrSelfModification
		}
		return nil

	case ActionDeleteUser:
		if !actor.IsAdmin {
			return ErrPermissionDenied
		}
		if actor.ID == req.TargetUserID {
			return ErrSelfDeletion
		}
		return nil

	case ActionListUsers, ActionDeleteFaction:
		if !actor.IsAdmin {
			return ErrPermissionDenied
		}
		return nil

	case ActionBulkUpdateGrants:
		// Any authenticated user may submit a batch; entries a non-admin
		// is not allowed to apply are skipped per entry by the registry,
		// not rejected wholesale here.
		return nil

	case ActionGrantFeature:
		// Every single-grant write is admin-only; faction_creation in
		// particular may never be self-served by a non-admin.
		if !actor.IsAdmin {
			return fmt.Errorf("%w: granting %s requires admin", ErrPermissionDenied, req.Feature)
		}
		return nil

	case ActionCreateFaction:
		if actor.IsAdmin {
			return nil
		}
		return c.requireGrant(ctx, actor, feature.FactionCreation)

	case ActionViewInvitation:
		if actor.ID == req.FactionLeaderID {
			return nil
		}
		return fmt.Errorf("%w: invitation code is leader-only", ErrPermissionDenied)

	case ActionViewAdvancedStats:
		if actor.IsAdmin {
			return nil
		}
		return c.requireGrant(ctx, actor, feature.AdvancedStats)

	case ActionViewLeaderboard:
		if actor.IsAdmin {
			return nil
		}
		return c.requireGrant(ctx, actor, feature.Leaderboard)

	default:
		return fmt.Errorf("%w: unknown action %q", ErrPermissionDenied, req.Action)
	}
}

func (c *Coordinator) requireGrant(ctx context.Context, actor *identity.User, name string) error {
	enabled, err := c.features.IsEnabled(ctx, actor.ID, name)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("%w: %s is not enabled", ErrPermissionDenied, name)
	}
	return nil
}
