package main

import (
	"fmt"
	"log/slog"
	"os"

	"wa-gateway/internal/adapters/db/postgres"
	"wa-gateway/internal/config"
)

func main() {
	conf := config.FromEnv()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(conf, log); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(conf config.Config, log *slog.Logger) error {
	log.Info("connecting to database")
	db, err := postgres.Open(conf.DatabaseURL)
	if err != nil {
		return err
	}
	defer postgres.Close(db)

	log.Info("running migrations")
	if err := postgres.Migrate(db); err != nil {
		return err
	}

	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(tables) == 0 {
		return fmt.Errorf("no tables found after migration")
	}

	log.Info("database ready", "tables", tables)
	return nil
}
