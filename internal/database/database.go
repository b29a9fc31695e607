package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"chitchat/internal/migrations"
	"chitchat/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite-backed message store, conversation directory and
// user directory.
type Database struct {
	db      *sql.DB
	content *contentCipher
}

// New opens (creating if needed) the database at dbPath and applies pending
// migrations. When encryptContent is true message bodies are sealed at rest
// with a key derived from CHITCHAT_ENCRYPTION_SECRET.
func New(dbPath string, encryptContent bool) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	// busy_timeout lets concurrent writers wait instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	closeWith := func(err error, msg string) (*Database, error) {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%s: %w (close error: %v)", msg, err, closeErr)
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return closeWith(err, "failed to ping database")
	}

	if _, err := migrations.Apply(ctx, db); err != nil {
		return closeWith(err, "failed to initialize schema")
	}

	content, err := newContentCipher(encryptContent)
	if err != nil {
		return closeWith(err, "failed to initialize content encryption")
	}

	return &Database{db: db, content: content}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping reports whether the store is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}
