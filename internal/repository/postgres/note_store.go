package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/internal/repository"
)

// nextIDExpr allocates max(live ids, retired watermark)+1. The read takes no lock;
// two concurrent creators can compute the same id and the primary key rejects
// the second insert.
const nextIDExpr = "GREATEST(COALESCE(MAX(id), 0), (SELECT max_retired_id FROM note_id_watermark)) + 1"

var noteColumns = []string{"n.id", "u.email", "n.note_title", "n.note_description", "n.note_created"}

type NoteStore struct {
	db DB
}

func NewNoteStore(db DB) *NoteStore {
	return &NoteStore{db: db}
}

func (s *NoteStore) Create(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	created := *note
	created.History = []domain.Snapshot{}
	created.Media = append([]domain.MediaRef{}, note.Media...)
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	err := runInTx(ctx, s.db, func(q Querier) error {
		ownerID, err := s.ownerID(ctx, q, note.Owner)
		if err != nil {
			return err
		}

		idQuery, _, err := psql.Select(nextIDExpr).From("notes").ToSql()
		if err != nil {
			return err
		}
		if err := q.QueryRow(ctx, idQuery).Scan(&created.UniqueID); err != nil {
			return mapError(err, "note", "next id")
		}

		insert, args, err := psql.
			Insert("notes").
			Columns("id", "owner_id", "note_title", "note_description", "note_created", "revision").
			Values(created.UniqueID, ownerID, created.Title, created.Description, created.CreatedAt, 0).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, insert, args...); err != nil {
			return mapError(err, "note", created.UniqueID)
		}

		return s.attachMedia(ctx, q, created.UniqueID, created.Media)
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// attachMedia writes refs as rows numbered by their position in the slice.
func (s *NoteStore) attachMedia(ctx context.Context, q Querier, noteID int64, refs []domain.MediaRef) error {
	if len(refs) == 0 {
		return nil
	}

	insert := psql.
		Insert("note_media").
		Columns("note_id", "position", "url", "mime_type", "size_bytes", "original_name")
	for i, m := range refs {
		insert = insert.Values(noteID, i, m.URL, m.MimeType, m.SizeBytes, m.OriginalName)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return mapError(err, "note media", noteID)
	}
	return nil
}

func (s *NoteStore) ownerID(ctx context.Context, q Querier, email string) (int64, error) {
	query, args, err := psql.Select("id").From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, mapError(err, "account", email)
	}
	return id, nil
}

func (s *NoteStore) Get(ctx context.Context, id int64) (*domain.Note, error) {
	notes, err := s.selectNotes(ctx, sq.Eq{"n.id": id})
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("note %d: %w", id, domain.ErrNotFound)
	}
	return notes[0], nil
}

func (s *NoteStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Note, error) {
	return s.selectNotes(ctx, sq.Eq{"u.email": owner})
}

// selectNotes loads matching notes ascending by id, then their history and media
// in one query each.
func (s *NoteStore) selectNotes(ctx context.Context, where sq.Sqlizer) ([]*domain.Note, error) {
	query, args, err := psql.
		Select(noteColumns...).
		From("notes n").
		Join("users u ON u.id = n.owner_id").
		Where(where).
		OrderBy("n.id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "notes", "query")
	}
	defer rows.Close()

	notes := []*domain.Note{}
	byID := map[int64]*domain.Note{}
	ids := []int64{}
	for rows.Next() {
		n := &domain.Note{History: []domain.Snapshot{}, Media: []domain.MediaRef{}}
		if err := rows.Scan(&n.UniqueID, &n.Owner, &n.Title, &n.Description, &n.CreatedAt); err != nil {
			return nil, mapError(err, "notes", "scan")
		}
		notes = append(notes, n)
		byID[n.UniqueID] = n
		ids = append(ids, n.UniqueID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "notes", "rows")
	}
	rows.Close()

	if len(ids) == 0 {
		return notes, nil
	}

	if err := s.loadHistory(ctx, s.db, ids, byID); err != nil {
		return nil, err
	}
	if err := s.loadMedia(ctx, s.db, ids, byID); err != nil {
		return nil, err
	}

	return notes, nil
}

func (s *NoteStore) loadHistory(ctx context.Context, q Querier, ids []int64, byID map[int64]*domain.Note) error {
	query, args, err := psql.
		Select("note_id", "note_title", "note_description", "archived_at").
		From("note_history").
		Where(sq.Eq{"note_id": ids}).
		OrderBy("note_id", "archived_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return mapError(err, "note history", ids)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID int64
		var snap domain.Snapshot
		if err := rows.Scan(&noteID, &snap.Title, &snap.Description, &snap.ArchivedAt); err != nil {
			return mapError(err, "note history", "scan")
		}
		if n, ok := byID[noteID]; ok {
			n.History = append(n.History, snap)
		}
	}
	return mapError(rows.Err(), "note history", "rows")
}

func (s *NoteStore) loadMedia(ctx context.Context, q Querier, ids []int64, byID map[int64]*domain.Note) error {
	query, args, err := psql.
		Select("note_id", "url", "mime_type", "size_bytes", "original_name").
		From("note_media").
		Where(sq.Eq{"note_id": ids}).
		OrderBy("note_id", "position").
		ToSql()
	if err != nil {
		return err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return mapError(err, "note media", ids)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID int64
		var m domain.MediaRef
		if err := rows.Scan(&noteID, &m.URL, &m.MimeType, &m.SizeBytes, &m.OriginalName); err != nil {
			return mapError(err, "note media", "scan")
		}
		if n, ok := byID[noteID]; ok {
			n.Media = append(n.Media, m)
		}
	}
	return mapError(rows.Err(), "note media", "rows")
}

type liveNote struct {
	owner       string
	title       string
	description string
	createdAt   time.Time
	revision    int64
}

// readLive loads the live fields and revision that the conditional update is
// checked against.
func (s *NoteStore) readLive(ctx context.Context, q Querier, id int64) (*liveNote, error) {
	query, args, err := psql.
		Select("u.email", "n.note_title", "n.note_description", "n.note_created", "n.revision").
		From("notes n").
		Join("users u ON u.id = n.owner_id").
		Where(sq.Eq{"n.id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var l liveNote
	if err := q.QueryRow(ctx, query, args...).Scan(&l.owner, &l.title, &l.description, &l.createdAt, &l.revision); err != nil {
		return nil, mapError(err, "note", id)
	}
	return &l, nil
}

// Update archives the current live fields and replaces them in one transaction.
// The UPDATE only matches the revision that was read; a concurrent writer makes
// it match nothing, the transaction rolls back and the whole read-modify-write
// is retried.
func (s *NoteStore) Update(ctx context.Context, id int64, owner string, edit domain.NoteEdit) (*domain.Note, error) {
	var updated *domain.Note

	err := repository.RetryStale(ctx, func() error {
		return runInTx(ctx, s.db, func(q Querier) error {
			live, err := s.readLive(ctx, q, id)
			if err != nil {
				return err
			}
			if live.owner != owner {
				return fmt.Errorf("note %d: %w", id, domain.ErrForbidden)
			}

			archive, args, err := psql.
				Insert("note_history").
				Columns("note_id", "note_title", "note_description", "archived_at").
				Values(id, live.title, live.description, edit.At).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := q.Exec(ctx, archive, args...); err != nil {
				return mapError(err, "note history", id)
			}

			update, args, err := psql.
				Update("notes").
				Set("note_title", edit.Title).
				Set("note_description", edit.Description).
				Set("revision", sq.Expr("revision + 1")).
				Where(sq.Eq{"id": id, "revision": live.revision}).
				ToSql()
			if err != nil {
				return err
			}
			tag, err := q.Exec(ctx, update, args...)
			if err != nil {
				return mapError(err, "note", id)
			}
			if tag.RowsAffected() == 0 {
				return repository.ErrStaleRevision
			}

			note := &domain.Note{
				UniqueID:    id,
				Owner:       live.owner,
				Title:       edit.Title,
				Description: edit.Description,
				CreatedAt:   live.createdAt,
				Media:       []domain.MediaRef{},
			}
			if err := s.loadMedia(ctx, q, []int64{id}, map[int64]*domain.Note{id: note}); err != nil {
				return err
			}
			updated = note
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes the note (history and media cascade) and raises the retired-id
// watermark so the id is never allocated again.
func (s *NoteStore) Delete(ctx context.Context, id int64, owner string) error {
	return runInTx(ctx, s.db, func(q Querier) error {
		live, err := s.readLive(ctx, q, id)
		if err != nil {
			return err
		}
		if live.owner != owner {
			return fmt.Errorf("note %d: %w", id, domain.ErrForbidden)
		}

		del, args, err := psql.Delete("notes").Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		tag, err := q.Exec(ctx, del, args...)
		if err != nil {
			return mapError(err, "note", id)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("note %d: %w", id, domain.ErrNotFound)
		}

		retire, args, err := psql.
			Update("note_id_watermark").
			Set("max_retired_id", sq.Expr("GREATEST(max_retired_id, ?)", id)).
			Where(sq.Eq{"singleton": true}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, retire, args...); err != nil {
			return mapError(err, "note id watermark", id)
		}
		return nil
	})
}
