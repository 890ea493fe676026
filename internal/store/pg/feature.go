package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"turfwar.org/internal/feature"
	"turfwar.org/internal/ids"
)

// Sparse grant policy: enabled rows exist, disabled rows do not. The
// enabled column is kept for schema compatibility and is always true.
type featureStore struct{ db *sql.DB }

func (s *featureStore) Set(ctx context.Context, userID, name string, enabled bool) error {
	if !feature.Known(name) {
		return fmt.Errorf("%w: %s", feature.ErrUnknownFeature, name)
	}
	if enabled {
		_, err := s.db.ExecContext(ctx, `
			insert into feature_access (id, user_id, feature, enabled)
			values ($1, $2, $3, true)
			on conflict (user_id, feature) do update set enabled = true
		`, ids.New(), userID, name)
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return feature.ErrNotFound
		}
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`delete from feature_access where user_id = $1 and feature = $2`, userID, name)
	return err
}

func (s *featureStore) IsEnabled(ctx context.Context, userID, name string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from feature_access
			where user_id = $1 and feature = $2 and enabled
		)
	`, userID, name).Scan(&enabled)
	return enabled, err
}

func (s *featureStore) ListForUser(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`select feature from feature_access where user_id = $1 and enabled`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool, len(feature.All))
	for _, name := range feature.All {
		out[name] = false
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if _, ok := out[name]; ok {
			out[name] = true
		}
	}
	return out, rows.Err()
}

// BulkUpdate applies the whole mapping in one transaction. Missing users
// and entries a non-admin actor may not apply are recorded as skips, not
// failures; anything else aborts and rolls back the entire batch.
func (s *featureStore) BulkUpdate(ctx context.Context, updates map[string]map[string]bool, actorIsAdmin bool) (feature.BulkResult, error) {
	var res feature.BulkResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	// Stable iteration keeps retries and tests deterministic.
	userIDs := make([]string, 0, len(updates))
	for uid := range updates {
		userIDs = append(userIDs, uid)
	}
	sort.Strings(userIDs)

	for _, uid := range userIDs {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`select exists (select 1 from users where id = $1)`, uid).Scan(&exists)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return feature.BulkResult{}, err
		}
		if !exists {
			res.MissingUsers = append(res.MissingUsers, uid)
			continue
		}

		names := make([]string, 0, len(updates[uid]))
		for name := range updates[uid] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if !feature.Known(name) {
				return feature.BulkResult{}, fmt.Errorf("%w: %s", feature.ErrUnknownFeature, name)
			}
			if !actorIsAdmin {
				res.DeniedGrants = append(res.DeniedGrants, uid+"/"+name)
				continue
			}
			if updates[uid][name] {
				if _, err := tx.ExecContext(ctx, `
					insert into feature_access (id, user_id, feature, enabled)
					values ($1, $2, $3, true)
					on conflict (user_id, feature) do update set enabled = true
				`, ids.New(), uid, name); err != nil {
					return feature.BulkResult{}, err
				}
			} else {
				if _, err := tx.ExecContext(ctx, `
					delete from feature_access where user_id = $1 and feature = $2
				`, uid, name); err != nil {
					return feature.BulkResult{}, err
				}
			}
			res.Applied++
		}
	}

	if err := tx.Commit(); err != nil {
		return feature.BulkResult{}, err
	}
	return res, nil
}
