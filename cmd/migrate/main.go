package main

import (
	"database/sql"
	"flag"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/noahpengding/peng-finance/internal/config"
	"github.com/noahpengding/peng-finance/internal/logger"
)

func main() {
	log := logger.New()

	dir := flag.String("migrations", "migrations", "Path to migrations directory")
	command := flag.String("command", "up", "Goose command to run (up, down, status)")
	flag.Parse()

	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	log.Info().Str("dir", *dir).Str("command", *command).Msg("Running migrations")

	switch *command {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	default:
		log.Fatal().Str("command", *command).Msg("Unknown migration command")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migrations applied")
}
