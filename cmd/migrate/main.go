package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"chitchat/internal/migrations"
	"chitchat/internal/security"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

func main() {
	dbPath := flag.String("db", "./chitchat.db", "Path to the database file")
	dryRun := flag.Bool("dry-run", false, "List pending migrations without applying them")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *dbPath, *dryRun, logger); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
}

func run(ctx context.Context, dbPath string, dryRun bool, logger *logrus.Logger) error {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return err
	}
	if _, err := os.Stat(dbPath); err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return err
	}
	defer db.Close()

	pending, err := migrations.Pending(ctx, db)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.WithField("db", dbPath).Info("Schema is up to date")
		return nil
	}

	for _, m := range pending {
		logger.WithField("version", m.Version).WithField("name", m.Name).Info("Pending migration")
	}
	if dryRun {
		return nil
	}

	applied, err := migrations.Apply(ctx, db)
	if err != nil {
		return err
	}
	logger.WithField("versions", applied).Info("Migrations applied. Restart ChitChat to use the new schema.")
	return nil
}
