// Package database persists users, interactions, activity, content and
// review progress with sqlx on sqlite or postgres.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

// Config selects and locates the database
type Config struct {
	Type         string `koanf:"type"`
	Path         string `koanf:"path"` // sqlite file, ":memory:" allowed
	DSN          string `koanf:"dsn"`  // postgres connection string
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// DefaultConfig returns a sqlite database under data/
func DefaultConfig() Config {
	return Config{
		Type:         TypeSQLite,
		Path:         filepath.Join("data", "lingofeed.db"),
		MaxOpenConns: 10,
	}
}

// Open connects to the configured database and creates the schema
func Open(cfg Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Type {
	case TypeSQLite, "":
		db, err = openSQLite(cfg.Path)
	case TypePostgres:
		db, err = sqlx.Connect("postgres", cfg.DSN)
		if err == nil && cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		path = DefaultConfig().Path
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite doesn't support multiple writers; one connection also keeps
	// a :memory: database alive for the lifetime of db
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// InitializeSchema creates the tables if they don't exist
func InitializeSchema(db *sqlx.DB) error {
	for _, stmt := range schema(db.DriverName()) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func schema(driver string) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "TIMESTAMP"
	if driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}
	r := strings.NewReplacer("{serial}", serial, "{ts}", ts)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			level TEXT NOT NULL,
			known_word_count INTEGER NOT NULL DEFAULT 0,
			comprehension_score REAL NOT NULL DEFAULT 0,
			success_by_difficulty TEXT NOT NULL DEFAULT '{}',
			streak INTEGER NOT NULL DEFAULT 0,
			xp INTEGER NOT NULL DEFAULT 0,
			last_active_at {ts},
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_interests (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			topic TEXT NOT NULL,
			weight REAL NOT NULL,
			PRIMARY KEY (user_id, topic)
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content_id TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			topics TEXT NOT NULL DEFAULT '[]',
			payload TEXT,
			created_at {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_time ON interactions (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS daily_activity (
			user_id TEXT NOT NULL,
			day {ts} NOT NULL,
			interactions INTEGER NOT NULL DEFAULT 0,
			xp INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, day)
		)`,
		`CREATE TABLE IF NOT EXISTS content (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			level TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			has_audio BOOLEAN NOT NULL DEFAULT false,
			popularity INTEGER NOT NULL DEFAULT 0,
			created_at {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_type_time ON content (type, created_at)`,
		`CREATE TABLE IF NOT EXISTS content_topics (
			content_id TEXT NOT NULL REFERENCES content(id) ON DELETE CASCADE,
			topic TEXT NOT NULL,
			PRIMARY KEY (content_id, topic)
		)`,
		`CREATE TABLE IF NOT EXISTS words (
			id {serial},
			word TEXT NOT NULL UNIQUE,
			translation TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			topic TEXT NOT NULL DEFAULT '',
			created_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS review_progress (
			id {serial},
			user_id TEXT NOT NULL,
			word_id INTEGER NOT NULL REFERENCES words(id) ON DELETE CASCADE,
			easiness_factor REAL NOT NULL DEFAULT 2.5,
			interval_days INTEGER NOT NULL DEFAULT 1,
			repetitions INTEGER NOT NULL DEFAULT 0,
			last_quality INTEGER NOT NULL DEFAULT 0,
			consecutive_right INTEGER NOT NULL DEFAULT 0,
			last_review_date {ts} NOT NULL,
			next_review_date {ts} NOT NULL,
			UNIQUE (user_id, word_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_progress_due ON review_progress (user_id, next_review_date)`,
	}
	for i := range stmts {
		stmts[i] = r.Replace(stmts[i])
	}
	return stmts
}
