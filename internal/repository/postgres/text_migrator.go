package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"versioned-notes-server/internal/repository"
)

type textRow struct {
	id          int64
	title       string
	description string
}

type TextMigrator struct {
	db DB
}

func NewTextMigrator(db DB) *TextMigrator {
	return &TextMigrator{db: db}
}

// RewriteText rewrites live note text and archived snapshot text in a single
// transaction. Notes whose text changes get their revision bumped so in-flight
// updates retry against the new values.
func (m *TextMigrator) RewriteText(ctx context.Context, rewrite func(string) (string, bool)) (repository.MigrationStats, error) {
	var stats repository.MigrationStats

	err := runInTx(ctx, m.db, func(q Querier) error {
		notes, err := readTextRows(ctx, q, "notes")
		if err != nil {
			return err
		}
		stats.NotesScanned = len(notes)

		for _, r := range notes {
			title, tChanged := rewrite(r.title)
			desc, dChanged := rewrite(r.description)
			if !tChanged && !dChanged {
				continue
			}

			query, args, err := psql.
				Update("notes").
				Set("note_title", title).
				Set("note_description", desc).
				Set("revision", sq.Expr("revision + 1")).
				Where(sq.Eq{"id": r.id}).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := q.Exec(ctx, query, args...); err != nil {
				return mapError(err, "note", r.id)
			}
			stats.NotesUpdated++
		}

		snapshots, err := readTextRows(ctx, q, "note_history")
		if err != nil {
			return err
		}

		for _, r := range snapshots {
			title, tChanged := rewrite(r.title)
			desc, dChanged := rewrite(r.description)
			if !tChanged && !dChanged {
				continue
			}

			query, args, err := psql.
				Update("note_history").
				Set("note_title", title).
				Set("note_description", desc).
				Where(sq.Eq{"id": r.id}).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := q.Exec(ctx, query, args...); err != nil {
				return mapError(err, "note history", r.id)
			}
			stats.SnapshotsUpdated++
		}

		return nil
	})

	return stats, err
}

// readTextRows buffers every row first; a pgx connection cannot run the updates
// while a result set is still open.
func readTextRows(ctx context.Context, q Querier, table string) ([]textRow, error) {
	query, args, err := psql.
		Select("id", "note_title", "note_description").
		From(table).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, table, "query")
	}
	defer rows.Close()

	var out []textRow
	for rows.Next() {
		var r textRow
		if err := rows.Scan(&r.id, &r.title, &r.description); err != nil {
			return nil, mapError(err, table, "scan")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, table, "rows")
	}
	return out, nil
}
