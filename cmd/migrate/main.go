package main

import (
	"database/sql"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"

	"github.com/meleshyn/comments-spa/config"
)

const migrationsDir = "migrations"

// Usage: migrate <command> [args], e.g. "migrate up", "migrate down",
// "migrate status". Connection settings come from the POSTGRES_* env vars.
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if len(os.Args) < 2 {
		log.Error("no command given, expected one of up, down, status, version")
		os.Exit(1)
	}
	command := os.Args[1]

	pg := config.LoadPostgresConfig()

	db, err := sql.Open("pgx", pg.GetDSN())
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Error("set dialect", "error", err)
		os.Exit(1)
	}

	if err := goose.Run(command, db, migrationsDir, os.Args[2:]...); err != nil {
		log.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}

	log.Info("migration complete", "command", command)
}
