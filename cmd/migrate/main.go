package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/leafsii/feed-backend/internal/config"
	"github.com/leafsii/feed-backend/internal/db/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	flags   = flag.NewFlagSet("migrate", flag.ExitOnError)
	dsn     = flags.String("dsn", "", "postgres DSN (defaults to FEED_POSTGRES_DSN)")
	timeout = flags.Duration("timeout", 2*time.Minute, "overall timeout")
)

const usage = "Usage: migrate [-dsn DSN] COMMAND\n\nCommands:\n  up\n  down\n  status\n  version"

func main() {
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		log.Fatal(usage)
	}

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		*dsn = cfg.Database.PostgresDSN
	}
	if *dsn == "" {
		log.Fatal("No DSN: pass -dsn or set FEED_POSTGRES_DSN")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	command := args[0]
	switch command {
	case "up":
		if err := goose.UpContext(ctx, db, "."); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
	case "down":
		if err := goose.DownContext(ctx, db, "."); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
	case "status":
		if err := goose.StatusContext(ctx, db, "."); err != nil {
			log.Fatalf("Migration status failed: %v", err)
		}
	case "version":
		if err := goose.VersionContext(ctx, db, "."); err != nil {
			log.Fatalf("Migration version failed: %v", err)
		}
	default:
		log.Fatalf("Unknown command: %s\n\n%s", command, usage)
	}
}
