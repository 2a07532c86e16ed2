package couchdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-kivik/kivik/v4"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/internal/repository"
)

// NoteStore keeps one document per note. History and media live inside the
// document; updates are conditional on the _rev that was read.
type NoteStore struct {
	db *kivik.DB
}

func NewNoteStore(db *kivik.DB) *NoteStore {
	return &NoteStore{db: db}
}

// Create allocates max(live, retired)+1 without a lock. A concurrent creator
// that picked the same id loses the PUT with 409, reported as ErrConflict.
func (s *NoteStore) Create(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	var account accountDoc
	if err := s.db.Get(ctx, accountDocID(note.Owner)).ScanDoc(&account); err != nil {
		return nil, mapError(err, "account", note.Owner)
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return nil, err
	}

	created := *note
	created.UniqueID = id
	created.History = []domain.Snapshot{}
	created.Media = append([]domain.MediaRef{}, note.Media...)
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	doc := newNoteDoc(&created)
	if _, err := s.db.Put(ctx, doc.ID, doc); err != nil {
		return nil, mapError(err, "note", id)
	}

	return &created, nil
}

func (s *NoteStore) nextID(ctx context.Context) (int64, error) {
	maxLive, err := s.maxLiveID(ctx)
	if err != nil {
		return 0, err
	}

	wm, err := s.watermark(ctx)
	if err != nil {
		return 0, err
	}

	return max(maxLive, wm.MaxRetiredID) + 1, nil
}

func (s *NoteStore) maxLiveID(ctx context.Context) (int64, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":  docTypeNote,
			"unique_id": map[string]interface{}{"$gt": 0},
		},
		"sort": []map[string]string{
			{"doc_type": "desc"},
			{"unique_id": "desc"},
		},
		"fields": []string{"unique_id"},
		"limit":  1,
	}

	rows := s.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return 0, mapError(err, "note", "max id")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, mapError(err, "note", "max id")
		}
		return 0, nil
	}

	var doc struct {
		UniqueID int64 `json:"unique_id"`
	}
	if err := rows.ScanDoc(&doc); err != nil {
		return 0, mapError(err, "note", "max id")
	}
	return doc.UniqueID, nil
}

func (s *NoteStore) watermark(ctx context.Context) (*watermarkDoc, error) {
	var doc watermarkDoc
	err := s.db.Get(ctx, watermarkDocID).ScanDoc(&doc)
	if isNotFound(err) {
		return &watermarkDoc{ID: watermarkDocID, DocType: docTypeMeta}, nil
	}
	if err != nil {
		return nil, mapError(err, "note id watermark", watermarkDocID)
	}
	return &doc, nil
}

// retire raises the watermark to at least id.
func (s *NoteStore) retire(ctx context.Context, id int64) error {
	return repository.RetryStale(ctx, func() error {
		wm, err := s.watermark(ctx)
		if err != nil {
			return err
		}
		if wm.MaxRetiredID >= id {
			return nil
		}

		wm.MaxRetiredID = id
		if _, err := s.db.Put(ctx, wm.ID, wm); err != nil {
			if isConflict(err) {
				return repository.ErrStaleRevision
			}
			return mapError(err, "note id watermark", id)
		}
		return nil
	})
}

func (s *NoteStore) get(ctx context.Context, id int64) (*noteDoc, error) {
	var doc noteDoc
	if err := s.db.Get(ctx, noteDocID(id)).ScanDoc(&doc); err != nil {
		return nil, mapError(err, "note", id)
	}
	return &doc, nil
}

func (s *NoteStore) Get(ctx context.Context, id int64) (*domain.Note, error) {
	doc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toNote(), nil
}

func (s *NoteStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Note, error) {
	selector := map[string]interface{}{
		"doc_type":  docTypeNote,
		"owner_key": owner,
	}

	notes := []*domain.Note{}
	err := findAll(ctx, s.db, selector, func(rows *kivik.ResultSet) error {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		notes = append(notes, doc.toNote())
		return nil
	})
	if err != nil {
		return nil, mapError(err, "notes", owner)
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UniqueID < notes[j].UniqueID
	})
	return notes, nil
}

// Update reads the document, archives its live fields and writes it back with
// the _rev it was read at. A 409 means another writer got there first; the read
// is repeated.
func (s *NoteStore) Update(ctx context.Context, id int64, owner string, edit domain.NoteEdit) (*domain.Note, error) {
	var updated *domain.Note

	err := repository.RetryStale(ctx, func() error {
		doc, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		if doc.Owner != owner {
			return fmt.Errorf("note %d: %w", id, domain.ErrForbidden)
		}

		doc.archive(edit)

		if _, err := s.db.Put(ctx, doc.ID, doc); err != nil {
			if isConflict(err) {
				return repository.ErrStaleRevision
			}
			return mapError(err, "note", id)
		}

		updated = doc.toNote()
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated.History = nil
	return updated, nil
}

// Delete retires the id before removing the document so a failure in between
// leaves a gap rather than a reusable id.
func (s *NoteStore) Delete(ctx context.Context, id int64, owner string) error {
	return repository.RetryStale(ctx, func() error {
		doc, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		if doc.Owner != owner {
			return fmt.Errorf("note %d: %w", id, domain.ErrForbidden)
		}

		if err := s.retire(ctx, id); err != nil {
			return err
		}

		if _, err := s.db.Delete(ctx, doc.ID, doc.Rev); err != nil {
			if isConflict(err) {
				return repository.ErrStaleRevision
			}
			return mapError(err, "note", id)
		}
		return nil
	})
}
