package couchdb

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb" // CouchDB driver
	"github.com/rs/zerolog"

	"versioned-notes-server/internal/config"
	"versioned-notes-server/internal/repository"
)

const findPageSize = 200

// indexes backs the Mango queries the stores issue.
var indexes = []struct {
	name   string
	fields []string
}{
	{name: "note-by-unique-id", fields: []string{"doc_type", "unique_id"}},
	{name: "note-by-owner", fields: []string{"doc_type", "owner_key"}},
}

// Open connects to CouchDB, creates the database and indexes if they are
// missing and returns the document Backend.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repository.Backend, error) {
	client, err := kivik.New("couch", cfg.CouchURL())
	if err != nil {
		return nil, fmt.Errorf("connect to couchdb: %w", err)
	}

	db, err := Bootstrap(ctx, client, cfg.CouchName, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &repository.Backend{
		Name:     config.BackendCouchDB,
		Accounts: NewAccountStore(db),
		Notes:    NewNoteStore(db),
		Migrator: NewTextMigrator(db),
		Close:    client.Close,
	}, nil
}

// Bootstrap makes sure the database and its indexes exist.
func Bootstrap(ctx context.Context, client *kivik.Client, name string, log zerolog.Logger) (*kivik.DB, error) {
	exists, err := client.DBExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, name); err != nil && kivik.HTTPStatus(err) != http.StatusPreconditionFailed {
			return nil, fmt.Errorf("create database: %w", err)
		}
		log.Info().Str("database", name).Msg("created database")
	}

	db := client.DB(name)
	if err := db.Err(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, idx := range indexes {
		index := map[string]interface{}{"fields": idx.fields}
		if err := db.CreateIndex(ctx, idx.name, idx.name, index); err != nil {
			return nil, fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	return db, nil
}

// findAll runs a Mango query to completion, following bookmarks page by page.
func findAll(ctx context.Context, db *kivik.DB, selector map[string]interface{}, visit func(rows *kivik.ResultSet) error) error {
	bookmark := ""
	for {
		query := map[string]interface{}{
			"selector": selector,
			"limit":    findPageSize,
		}
		if bookmark != "" {
			query["bookmark"] = bookmark
		}

		rows := db.Find(ctx, query)
		if err := rows.Err(); err != nil {
			return err
		}

		n := 0
		for rows.Next() {
			n++
			if err := visit(rows); err != nil {
				_ = rows.Close()
				return err
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}

		meta, err := rows.Metadata()
		_ = rows.Close()
		if err != nil {
			return err
		}

		if n < findPageSize || meta.Bookmark == "" || meta.Bookmark == bookmark {
			return nil
		}
		bookmark = meta.Bookmark
	}
}
