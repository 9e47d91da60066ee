// Package main applies or rolls back the database schema.
//
// Usage:
//
//	migrate [up|down|steps N|version]
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"purchasing/internal/infrastructure/config"
	"purchasing/pkg/logger"
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if !cfg.UsesPostgres() {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalw("failed to create postgres driver", "error", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		log.Fatalw("failed to create migrate instance", "error", err, "path", cfg.MigrationsPath)
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		n, convErr := strconv.Atoi(flag.Arg(1))
		if convErr != nil || n == 0 {
			log.Fatalw("steps requires a non-zero integer", "arg", flag.Arg(1))
		}
		err = m.Steps(n)
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil && !errors.Is(verErr, migrate.ErrNilVersion) {
			log.Fatalw("failed to read version", "error", verErr)
		}
		log.Infow("schema version", "version", version, "dirty", dirty)
		return
	default:
		log.Fatalw("unknown command", "command", cmd)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no migrations to apply")
		return
	}
	if err != nil {
		log.Fatalw("migration failed", "command", cmd, "error", err)
	}

	version, dirty, _ := m.Version()
	log.Infow("migrations completed", "command", cmd, "version", version, "dirty", dirty)
}
