package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"nightmap/internal/logging"
	"nightmap/internal/migrations"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	var (
		dsn      string
		logLevel string
	)

	flag.StringVar(&dsn, "db", "", "Postgres connection string (default: $DB_ADDR)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	logger, err := logging.New(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if dsn == "" {
		dsn = os.Getenv("DB_ADDR")
	}
	if dsn == "" {
		logger.Fatal("no database address: pass -db or set DB_ADDR")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatalw("failed to open database", "error", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalw("failed to ping database", "error", err)
	}

	m, err := migrations.New(db, logger)
	if err != nil {
		logger.Fatalw("failed to create migrator", "error", err)
	}
	defer m.Close()

	logger.Infow("migration CLI started", "command", command)

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			logger.Fatalw("migration up failed", "error", err)
		}

	case "down":
		if err := m.Down(); err != nil {
			logger.Fatalw("migration down failed", "error", err)
		}

	case "step":
		if len(args) < 2 {
			logger.Fatal("step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			logger.Fatalw("invalid step count", "value", args[1])
		}
		if err := m.Steps(n); err != nil {
			logger.Fatalw("migration step failed", "error", err)
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatalw("failed to get version", "error", err)
		}
		if version == 0 {
			logger.Info("no migrations applied")
		} else {
			logger.Infow("current migration version", "version", version, "dirty", dirty)
		}

	case "force":
		if len(args) < 2 {
			logger.Fatal("version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			logger.Fatalw("invalid version number", "value", args[1])
		}
		if err := m.Force(version); err != nil {
			logger.Fatalw("force version failed", "error", err)
		}

	default:
		logger.Errorw("unknown command", "command", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Nightmap Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                Apply all pending migrations
  down              Roll back all migrations
  step <n>          Apply n migrations (positive=up, negative=down)
  version           Show current migration version
  force <version>   Force set migration version (use with caution)

Flags:
  -db string          Postgres connection string (default: $DB_ADDR)
  -log-level string   Log level: debug, info, warn, error (default: info)

Examples:
  migrate up
  migrate step -1
  migrate version`)
}
