package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"marketwatch_bot/migrations"
)

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/marketwatch.db"), "path to sqlite database")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
		fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
		fmt.Fprintln(os.Stderr, "  down        Roll back one version")
		fmt.Fprintln(os.Stderr, "  status      Show migration status")
		fmt.Fprintln(os.Stderr, "  version     Show current version")
		fmt.Fprintln(os.Stderr, "  reset       Roll back all migrations")
		fmt.Fprintln(os.Stderr, "  seed <chat> Migrate up and register a demo subscription")
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	cmd := args[0]
	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	case "seed":
		if len(args) != 2 {
			log.Fatalf("usage: migrate seed <chat_id>")
		}
		chatID, perr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil {
			log.Fatalf("invalid chat id %q", args[1])
		}
		if err = goose.Up(db, "."); err == nil {
			err = seed(db, chatID)
		}
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// seed registers a demo subscription so a fresh deployment has something to
// poll: a trial user in melbourne watching "mountain bike" with a $500 price
// book entry. Safe to rerun.
func seed(db *sql.DB, chatID int64) error {
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT OR IGNORE INTO users (chat_id, is_active, expiry_date, location, created_at)
		 VALUES (?, 1, ?, 'melbourne', ?)`,
		chatID, now.AddDate(0, 0, 30).Format("2006-01-02"), now.Format("2006-01-02T15:04:05Z"),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	var userID int64
	if err := db.QueryRow(`SELECT id FROM users WHERE chat_id = ?`, chatID).Scan(&userID); err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO keywords (user_id, keyword) VALUES (?, 'mountain bike')`, userID,
	); err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR REPLACE INTO products (user_id, name, preferred, good_price)
		 VALUES (?, 'mountain bike', 1, 500)`, userID,
	); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	fmt.Printf("Seeded chat %d: watching %q in melbourne with a $500 price book entry.\n",
		chatID, "mountain bike")
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
