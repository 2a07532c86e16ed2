package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"versioned-notes-server/internal/config"
	"versioned-notes-server/internal/repository"
)

// Open connects the pool, brings the schema up to date and returns the
// relational Backend.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repository.Backend, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &repository.Backend{
		Name:     config.BackendPostgres,
		Accounts: NewAccountStore(pool),
		Notes:    NewNoteStore(pool),
		Migrator: NewTextMigrator(pool),
		Close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}
