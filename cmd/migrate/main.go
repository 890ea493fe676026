// Command migrate applies, rolls back, and inspects the turfwar schema.
//
//	migrate -dsn postgres://... up
//	migrate down
//	migrate seed
//	migrate status
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"turfwar.org/internal/migrate"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", os.Getenv("TURFWAR_PG_DSN"), "PostgreSQL DSN")
	migrationsDir := fs.String("migrations", "ops/migrations/sql", "directory with *.up.sql / *.down.sql files")
	seedsDir := fs.String("seeds", "ops/migrations/seeds", "directory with seed *.sql files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return fmt.Errorf("missing DSN: set -dsn or TURFWAR_PG_DSN")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: migrate [flags] up|down|seed|status")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsDir, *seedsDir)
	cmd := fs.Arg(0)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var applied []string
		if applied, err = mgr.Status(ctx); err == nil {
			for _, name := range applied {
				fmt.Println(name)
			}
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}
