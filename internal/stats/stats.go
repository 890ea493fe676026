package stats

import (
	"context"
	"errors"
	"time"
)

var ErrNoStats = errors.New("stats: no snapshots recorded")

// Snapshot is one append-only record of a user's gameplay counters. Rows
// are never updated; "current" and "previous" are the two most recent
// snapshots ordered by timestamp.
type Snapshot struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"user_id"`
	TotalWins                int64     `json:"total_wins"`
	TotalLosses              int64     `json:"total_losses"`
	AssaultsWon              int64     `json:"assaults_won"`
	AssaultsLost             int64     `json:"assaults_lost"`
	DefendingBattlesWon      int64     `json:"defending_battles_won"`
	DefendingBattlesLost     int64     `json:"defending_battles_lost"`
	Kills                    int64     `json:"kills"`
	DestroyedTraps           int64     `json:"destroyed_traps"`
	LostAssociates           int64     `json:"lost_associates"`
	LostTraps                int64     `json:"lost_traps"`
	HealedAssociates         int64     `json:"healed_associates"`
	WoundedEnemyAssociates   int64     `json:"wounded_enemy_associates"`
	EnemyTurfsDestroyed      int64     `json:"enemy_turfs_destroyed"`
	TurfDestroyedTimes       int64     `json:"turf_destroyed_times"`
	EliminatedEnemyInfluence int64     `json:"eliminated_enemy_influence"`
	Timestamp                time.Time `json:"timestamp"`
}

// Delta pairs the latest counter value with the one before it.
type Delta struct {
	Current  int64 `json:"current"`
	Previous int64 `json:"previous"`
}

// Comparison maps counter names to their deltas.
type Comparison map[string]Delta

// Entry is one leaderboard row.
type Entry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Kills    int64  `json:"kills"`
	Wins     int64  `json:"total_wins"`
}

// Store persists snapshots.
type Store interface {
	Record(ctx context.Context, s *Snapshot) error

	// LatestTwo returns the two most recent snapshots for the user. prev
	// is nil when only one exists; ErrNoStats when none do.
	LatestTwo(ctx context.Context, userID string) (cur, prev *Snapshot, err error)

	// Leaderboard ranks users by the kills counter of their latest
	// snapshot.
	Leaderboard(ctx context.Context, limit int) ([]Entry, error)
}

func (s *Snapshot) counters() map[string]int64 {
	return map[string]int64{
		"total_wins":                 s.TotalWins,
		"total_losses":               s.TotalLosses,
		"assaults_won":               s.AssaultsWon,
		"assaults_lost":              s.AssaultsLost,
		"defending_battles_won":      s.DefendingBattlesWon,
		"defending_battles_lost":     s.DefendingBattlesLost,
		"kills":                      s.Kills,
		"destroyed_traps":            s.DestroyedTraps,
		"lost_associates":            s.LostAssociates,
		"lost_traps":                 s.LostTraps,
		"healed_associates":          s.HealedAssociates,
		"wounded_enemy_associates":   s.WoundedEnemyAssociates,
		"enemy_turfs_destroyed":      s.EnemyTurfsDestroyed,
		"turf_destroyed_times":       s.TurfDestroyedTimes,
		"eliminated_enemy_influence": s.EliminatedEnemyInfluence,
	}
}

// Compare builds the current-vs-previous view. With a single snapshot the
// previous value falls back to the current one, so deltas read as zero
// change rather than a drop from nothing.
func Compare(cur, prev *Snapshot) Comparison {
	out := make(Comparison, 15)
	curVals := cur.counters()
	prevVals := curVals
	if prev != nil {
		prevVals = prev.counters()
	}
	for name, val := range curVals {
		out[name] = Delta{Current: val, Previous: prevVals[name]}
	}
	return out
}
