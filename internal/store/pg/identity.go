package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"turfwar.org/internal/identity"
	"turfwar.org/internal/ids"
)

type userStore struct{ db *sql.DB }

const userColumns = `id, username, email, password_hash, is_admin, faction_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (*identity.User, error) {
	var u identity.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.FactionID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *identity.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash)
		values ($1, $2, $3, $4)
		returning created_at
	`, u.ID, u.Username, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_username_key"):
			return fmt.Errorf("%w: username already exists", identity.ErrConflict)
		case isUniqueViolation(err, "users_email_key"):
			return fmt.Errorf("%w: email already exists", identity.ErrConflict)
		case isUniqueViolation(err, ""):
			return identity.ErrConflict
		}
		return err
	}
	return nil
}

func (s *userStore) FindByID(ctx context.Context, id string) (*identity.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id))
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username = $1`, username))
}

func (s *userStore) List(ctx context.Context) ([]*identity.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set is_admin = $2 where id = $1`, userID, isAdmin)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SetPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2 where id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes the user, their feature grants, and resolves any faction
// leadership they held, in one transaction. Leadership passes to the
// longest-tenured remaining member; a faction whose leader was its last
// member is removed.
func (s *userStore) Delete(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var username string
	var factionID sql.NullString
	err = tx.QueryRowContext(ctx,
		`select username, faction_id from users where id = $1 for update`, userID,
	).Scan(&username, &factionID)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`delete from feature_access where user_id = $1`, userID); err != nil {
		return err
	}

	if factionID.Valid {
		var leaderID string
		err = tx.QueryRowContext(ctx,
			`select leader_id from factions where id = $1 for update`, factionID.String,
		).Scan(&leaderID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil && leaderID == userID {
			var heirID, heirName string
			err = tx.QueryRowContext(ctx, `
				select id, username from users
				where faction_id = $1 and id <> $2
				order by created_at asc
				limit 1
			`, factionID.String, userID).Scan(&heirID, &heirName)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				// Leader was the last member: dissolve the faction.
				if _, err := tx.ExecContext(ctx,
					`delete from factions where id = $1`, factionID.String); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if _, err := tx.ExecContext(ctx, `
					update factions set leader_id = $2, leader_username = $3 where id = $1
				`, factionID.String, heirID, heirName); err != nil {
					return err
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `delete from users where id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrNotFound
	}
	return nil
}
