package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/sumire/cronboard/internal/database"
	"github.com/sumire/cronboard/internal/logger"
)

func main() {
	command := flag.String("command", "up", "Migration command (up, down, status)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	level := os.Getenv("LOG_LEVEL")
	if *verbose {
		level = "debug"
	}
	log := logger.New(os.Stdout, level)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	switch *command {
	case "up":
		if err := database.Up(databaseURL); err != nil {
			log.Error("migration up failed", "error", err)
			os.Exit(1)
		}
		log.Info("all migrations applied")

	case "down":
		if err := database.Down(databaseURL); err != nil {
			log.Error("migration down failed", "error", err)
			os.Exit(1)
		}
		log.Info("all migrations rolled back")

	case "status":
		m, err := database.NewMigrator(databaseURL)
		if err != nil {
			log.Error("create migrator failed", "error", err)
			os.Exit(1)
		}
		defer m.Close()

		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied")
			return
		}
		if err != nil {
			log.Error("read migration version failed", "error", err)
			os.Exit(1)
		}
		log.Info("migration status", "version", version, "dirty", dirty)

	default:
		log.Error("unknown command", "command", *command)
		fmt.Println("Available commands: up, down, status")
		os.Exit(1)
	}
}
