package couchdb

import (
	"context"

	"github.com/go-kivik/kivik/v4"

	"versioned-notes-server/internal/repository"
)

type TextMigrator struct {
	db *kivik.DB
}

func NewTextMigrator(db *kivik.DB) *TextMigrator {
	return &TextMigrator{db: db}
}

// RewriteText rewrites every note document in place. Each document is its own
// conditional write; a concurrent edit makes that document re-read and retry.
func (m *TextMigrator) RewriteText(ctx context.Context, rewrite func(string) (string, bool)) (repository.MigrationStats, error) {
	var stats repository.MigrationStats

	var ids []string
	err := findAll(ctx, m.db, map[string]interface{}{"doc_type": docTypeNote}, func(rows *kivik.ResultSet) error {
		var doc struct {
			ID string `json:"_id"`
		}
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		ids = append(ids, doc.ID)
		return nil
	})
	if err != nil {
		return stats, mapError(err, "notes", "scan")
	}

	for _, id := range ids {
		stats.NotesScanned++

		var liveChanged bool
		var snapshotsChanged int
		err := repository.RetryStale(ctx, func() error {
			var doc noteDoc
			if err := m.db.Get(ctx, id).ScanDoc(&doc); err != nil {
				if isNotFound(err) {
					return nil
				}
				return mapError(err, "note", id)
			}

			liveChanged, snapshotsChanged = rewriteDoc(&doc, rewrite)
			if !liveChanged && snapshotsChanged == 0 {
				return nil
			}

			if _, err := m.db.Put(ctx, id, doc); err != nil {
				if isConflict(err) {
					return repository.ErrStaleRevision
				}
				return mapError(err, "note", id)
			}
			return nil
		})
		if err != nil {
			return stats, err
		}

		if liveChanged {
			stats.NotesUpdated++
		}
		stats.SnapshotsUpdated += snapshotsChanged
	}

	return stats, nil
}

func rewriteDoc(doc *noteDoc, rewrite func(string) (string, bool)) (liveChanged bool, snapshotsChanged int) {
	var tc, dc bool
	doc.Title, tc = rewrite(doc.Title)
	doc.Description, dc = rewrite(doc.Description)
	liveChanged = tc || dc

	for i := range doc.History {
		doc.History[i].Title, tc = rewrite(doc.History[i].Title)
		doc.History[i].Description, dc = rewrite(doc.History[i].Description)
		if tc || dc {
			snapshotsChanged++
		}
	}
	return liveChanged, snapshotsChanged
}
