package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"versioned-notes-server/internal/codec"
	"versioned-notes-server/internal/repository"
)

// EncodingMigration upgrades legacy plaintext note text to the encoded form.
// Values that already look encoded are left alone, so re-running it is a no-op.
type EncodingMigration struct {
	migrator repository.TextMigrator
	log      zerolog.Logger
}

func NewEncodingMigration(migrator repository.TextMigrator, log zerolog.Logger) *EncodingMigration {
	return &EncodingMigration{migrator: migrator, log: log}
}

// EncodeLegacy is the rewrite applied to each stored value.
func EncodeLegacy(value string) (string, bool) {
	if value == "" || codec.IsEncoded(value) {
		return value, false
	}
	return codec.Encode(value), true
}

func (m *EncodingMigration) Run(ctx context.Context) (repository.MigrationStats, error) {
	stats, err := m.migrator.RewriteText(ctx, EncodeLegacy)
	if err != nil {
		return stats, fmt.Errorf("encoding migration: %w", err)
	}

	m.log.Info().
		Int("notes_scanned", stats.NotesScanned).
		Int("notes_updated", stats.NotesUpdated).
		Int("snapshots_updated", stats.SnapshotsUpdated).
		Msg("encoding migration finished")

	return stats, nil
}
