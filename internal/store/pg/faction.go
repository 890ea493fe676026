package pg

import (
	"context"
	"database/sql"
	"errors"

	"turfwar.org/internal/faction"
	"turfwar.org/internal/identity"
	"turfwar.org/internal/ids"
)

// Invitation codes collide rarely (36^8 space) but the unique constraint,
// not the generator, is the guarantee; creation regenerates and retries a
// few times before giving up.
const maxCodeAttempts = 5

type factionStore struct{ db *sql.DB }

const factionColumns = `id, name, invitation_code, leader_id, leader_username, created_at`

func scanFaction(row interface{ Scan(...any) error }) (*faction.Faction, error) {
	var f faction.Faction
	err := row.Scan(&f.ID, &f.Name, &f.InvitationCode, &f.LeaderID, &f.LeaderUsername, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, faction.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *factionStore) Create(ctx context.Context, name string, requester *identity.User) (*faction.Faction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`select faction_id from users where id = $1 for update`, requester.ID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if current.Valid {
		return nil, faction.ErrAlreadyMember
	}

	f := &faction.Faction{
		ID:             ids.New(),
		Name:           name,
		LeaderID:       requester.ID,
		LeaderUsername: requester.Username,
	}
	// Each attempt runs under a savepoint: Postgres aborts the whole
	// transaction at the first statement error (25P02), so without
	// rolling back to the savepoint a retried insert could never run.
	for attempt := 0; ; attempt++ {
		f.InvitationCode = faction.NewInvitationCode()
		if _, err := tx.ExecContext(ctx, `savepoint create_faction`); err != nil {
			return nil, err
		}
		err = tx.QueryRowContext(ctx, `
			insert into factions (id, name, invitation_code, leader_id, leader_username)
			values ($1, $2, $3, $4, $5)
			returning created_at
		`, f.ID, f.Name, f.InvitationCode, f.LeaderID, f.LeaderUsername).Scan(&f.CreatedAt)
		if err == nil {
			break
		}
		if _, rbErr := tx.ExecContext(ctx, `rollback to savepoint create_faction`); rbErr != nil {
			return nil, rbErr
		}
		if isUniqueViolation(err, "factions_name_key") {
			return nil, faction.ErrNameTaken
		}
		if isUniqueViolation(err, "factions_invitation_code_key") && attempt < maxCodeAttempts-1 {
			continue
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`update users set faction_id = $2 where id = $1`, requester.ID, f.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *factionStore) Join(ctx context.Context, code string, requester *identity.User) (*faction.Faction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	f, err := scanFaction(tx.QueryRowContext(ctx,
		`select `+factionColumns+` from factions where invitation_code = $1`, code))
	if errors.Is(err, faction.ErrNotFound) {
		return nil, faction.ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`select faction_id from users where id = $1 for update`, requester.ID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if current.Valid {
		return nil, faction.ErrAlreadyMember
	}

	if _, err := tx.ExecContext(ctx,
		`update users set faction_id = $2 where id = $1`, requester.ID, f.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *factionStore) Leave(ctx context.Context, requester *identity.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`select faction_id from users where id = $1 for update`, requester.ID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !current.Valid {
		return faction.ErrNotInFaction
	}

	var leaderID string
	err = tx.QueryRowContext(ctx,
		`select leader_id from factions where id = $1`, current.String,
	).Scan(&leaderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if leaderID == requester.ID {
		return faction.ErrLeaderCannotLeave
	}

	if _, err := tx.ExecContext(ctx,
		`update users set faction_id = null where id = $1`, requester.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *factionStore) Transfer(ctx context.Context, requester *identity.User, newLeaderUsername string) (*faction.Faction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`select faction_id from users where id = $1 for update`, requester.ID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !current.Valid {
		return nil, faction.ErrNotInFaction
	}

	f, err := scanFaction(tx.QueryRowContext(ctx,
		`select `+factionColumns+` from factions where id = $1 for update`, current.String))
	if err != nil {
		return nil, err
	}
	if f.LeaderID != requester.ID {
		return nil, faction.ErrNotLeader
	}

	var heirID string
	var heirFaction sql.NullString
	err = tx.QueryRowContext(ctx,
		`select id, faction_id from users where username = $1`, newLeaderUsername,
	).Scan(&heirID, &heirFaction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, faction.ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	if !heirFaction.Valid || heirFaction.String != f.ID {
		return nil, faction.ErrNotMember
	}

	if _, err := tx.ExecContext(ctx, `
		update factions set leader_id = $2, leader_username = $3 where id = $1
	`, f.ID, heirID, newLeaderUsername); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	f.LeaderID = heirID
	f.LeaderUsername = newLeaderUsername
	return f, nil
}

func (s *factionStore) Delete(ctx context.Context, factionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		`select id from factions where id = $1 for update`, factionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return faction.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`update users set faction_id = null where faction_id = $1`, factionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`delete from factions where id = $1`, factionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *factionStore) FindByID(ctx context.Context, id string) (*faction.Faction, error) {
	return scanFaction(s.db.QueryRowContext(ctx,
		`select `+factionColumns+` from factions where id = $1`, id))
}

func (s *factionStore) Members(ctx context.Context, factionID string) ([]faction.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, username from users
		where faction_id = $1
		order by created_at asc
	`, factionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []faction.Member
	for rows.Next() {
		var m faction.Member
		if err := rows.Scan(&m.ID, &m.Username); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
