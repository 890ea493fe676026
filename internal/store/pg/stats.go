package pg

import (
	"context"
	"database/sql"

	"turfwar.org/internal/ids"
	"turfwar.org/internal/stats"
)

type statsStore struct{ db *sql.DB }

const statsColumns = `id, user_id, total_wins, total_losses, assaults_won, assaults_lost,
	defending_battles_won, defending_battles_lost, kills, destroyed_traps,
	lost_associates, lost_traps, healed_associates, wounded_enemy_associates,
	enemy_turfs_destroyed, turf_destroyed_times, eliminated_enemy_influence, timestamp`

func scanSnapshot(row interface{ Scan(...any) error }) (*stats.Snapshot, error) {
	var s stats.Snapshot
	err := row.Scan(
		&s.ID, &s.UserID, &s.TotalWins, &s.TotalLosses, &s.AssaultsWon, &s.AssaultsLost,
		&s.DefendingBattlesWon, &s.DefendingBattlesLost, &s.Kills, &s.DestroyedTraps,
		&s.LostAssociates, &s.LostTraps, &s.HealedAssociates, &s.WoundedEnemyAssociates,
		&s.EnemyTurfsDestroyed, &s.TurfDestroyedTimes, &s.EliminatedEnemyInfluence, &s.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (st *statsStore) Record(ctx context.Context, s *stats.Snapshot) error {
	if s.ID == "" {
		s.ID = ids.New()
	}
	return st.db.QueryRowContext(ctx, `
		insert into stats (
			id, user_id, total_wins, total_losses, assaults_won, assaults_lost,
			defending_battles_won, defending_battles_lost, kills, destroyed_traps,
			lost_associates, lost_traps, healed_associates, wounded_enemy_associates,
			enemy_turfs_destroyed, turf_destroyed_times, eliminated_enemy_influence
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		returning timestamp
	`,
		s.ID, s.UserID, s.TotalWins, s.TotalLosses, s.AssaultsWon, s.AssaultsLost,
		s.DefendingBattlesWon, s.DefendingBattlesLost, s.Kills, s.DestroyedTraps,
		s.LostAssociates, s.LostTraps, s.HealedAssociates, s.WoundedEnemyAssociates,
		s.EnemyTurfsDestroyed, s.TurfDestroyedTimes, s.EliminatedEnemyInfluence,
	).Scan(&s.Timestamp)
}

func (st *statsStore) LatestTwo(ctx context.Context, userID string) (*stats.Snapshot, *stats.Snapshot, error) {
	rows, err := st.db.QueryContext(ctx, `
		select `+statsColumns+` from stats
		where user_id = $1
		order by timestamp desc
		limit 2
	`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var snaps []*stats.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, nil, err
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	switch len(snaps) {
	case 0:
		return nil, nil, stats.ErrNoStats
	case 1:
		return snaps[0], nil, nil
	default:
		return snaps[0], snaps[1], nil
	}
}

func (st *statsStore) Leaderboard(ctx context.Context, limit int) ([]stats.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := st.db.QueryContext(ctx, `
		select user_id, username, kills, total_wins from (
			select distinct on (s.user_id)
				s.user_id as user_id, u.username as username,
				s.kills as kills, s.total_wins as total_wins
			from stats s
			join users u on u.id = s.user_id
			order by s.user_id, s.timestamp desc
		) latest
		order by kills desc, username asc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []stats.Entry
	for rows.Next() {
		var e stats.Entry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Kills, &e.Wins); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
