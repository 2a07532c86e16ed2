// Command encode-migrate rewrites legacy plaintext note text, live and archived,
// into the encoded at-rest form. Running it again changes nothing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"versioned-notes-server/internal/config"
	"versioned-notes-server/internal/logger"
	"versioned-notes-server/internal/repository/backend"
	"versioned-notes-server/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage backend")
	}
	defer store.Close()

	stats, err := service.NewEncodingMigration(store.Migrator, log).Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("encoding migration failed")
		store.Close()
		os.Exit(1)
	}

	fmt.Printf("scanned %d notes, updated %d notes and %d history entries\n",
		stats.NotesScanned, stats.NotesUpdated, stats.SnapshotsUpdated)
}
