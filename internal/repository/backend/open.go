// Package backend picks the storage implementation named in configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"versioned-notes-server/internal/config"
	"versioned-notes-server/internal/repository"
	"versioned-notes-server/internal/repository/couchdb"
	"versioned-notes-server/internal/repository/postgres"
)

type opener func(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repository.Backend, error)

var openers = map[string]opener{
	config.BackendCouchDB:  couchdb.Open,
	config.BackendPostgres: postgres.Open,
}

// Open is called once at startup. Nothing above the repository layer sees which
// backend it returned.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repository.Backend, error) {
	open, ok := openers[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	b, err := open(ctx, cfg, log.With().Str("backend", cfg.Backend).Logger())
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	log.Info().Str("backend", b.Name).Msg("storage backend ready")
	return b, nil
}
