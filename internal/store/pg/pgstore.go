// Package pg implements the identity, feature, faction and stats store
// interfaces on PostgreSQL via database/sql. Uniqueness of usernames,
// emails, faction names, invitation codes and (user, feature) pairs is
// carried by constraints, not read-then-write checks; unique violations
// are translated to the domain conflict errors.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"turfwar.org/internal/faction"
	"turfwar.org/internal/feature"
	"turfwar.org/internal/identity"
	"turfwar.org/internal/stats"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool; used by tests with sqlmock.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() identity.Store   { return &userStore{db: s.db} }
func (s *Store) Factions() faction.Store { return &factionStore{db: s.db} }
func (s *Store) Features() feature.Store { return &featureStore{db: s.db} }
func (s *Store) Stats() stats.Store      { return &statsStore{db: s.db} }

var (
	_ identity.Store = (*userStore)(nil)
	_ faction.Store  = (*factionStore)(nil)
	_ feature.Store  = (*featureStore)(nil)
	_ stats.Store    = (*statsStore)(nil)
)

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isUniqueViolation(err error, constraint string) bool {
	pgErr, ok := maybePgError(err)
	if !ok || pgErr.Code != pgErrUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
