package couchdb

import (
	"fmt"
	"sort"
	"time"

	"versioned-notes-server/internal/domain"
)

const (
	docTypeAccount = "account"
	docTypeNote    = "note"
	docTypeMeta    = "meta"

	watermarkDocID = "meta:note-id-watermark"
)

func accountDocID(email string) string {
	return fmt.Sprintf("account:%s", email)
}

func noteDocID(id int64) string {
	return fmt.Sprintf("note:%d", id)
}

type accountDoc struct {
	ID             string    `json:"_id"`
	Rev            string    `json:"_rev,omitempty"`
	DocType        string    `json:"doc_type"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	CreatedAt      time.Time `json:"created_at"`
}

// noteDoc embeds history and media so a note and everything attached to it is
// always written by a single document PUT.
type noteDoc struct {
	ID          string            `json:"_id"`
	Rev         string            `json:"_rev,omitempty"`
	DocType     string            `json:"doc_type"`
	UniqueID    int64             `json:"unique_id"`
	Owner       string            `json:"owner_key"`
	Title       string            `json:"note_title"`
	Description string            `json:"note_description"`
	CreatedAt   time.Time         `json:"note_created"`
	History     []domain.Snapshot `json:"note_history"`
	Media       []domain.MediaRef `json:"media"`
}

type watermarkDoc struct {
	ID           string `json:"_id"`
	Rev          string `json:"_rev,omitempty"`
	DocType      string `json:"doc_type"`
	MaxRetiredID int64  `json:"max_retired_id"`
}

func newNoteDoc(n *domain.Note) noteDoc {
	doc := noteDoc{
		ID:          noteDocID(n.UniqueID),
		DocType:     docTypeNote,
		UniqueID:    n.UniqueID,
		Owner:       n.Owner,
		Title:       n.Title,
		Description: n.Description,
		CreatedAt:   n.CreatedAt,
		History:     append([]domain.Snapshot{}, n.History...),
		Media:       append([]domain.MediaRef{}, n.Media...),
	}
	return doc
}

func (d *noteDoc) toNote() *domain.Note {
	n := &domain.Note{
		UniqueID:    d.UniqueID,
		Owner:       d.Owner,
		Title:       d.Title,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		History:     append([]domain.Snapshot{}, d.History...),
		Media:       append([]domain.MediaRef{}, d.Media...),
	}
	// Stored newest-first already; a stable sort keeps equal timestamps in
	// insertion order.
	sort.SliceStable(n.History, func(i, j int) bool {
		return n.History[i].ArchivedAt.After(n.History[j].ArchivedAt)
	})
	return n
}

// archive prepends the current live fields to the history and installs the edit.
func (d *noteDoc) archive(edit domain.NoteEdit) {
	snap := domain.Snapshot{
		Title:       d.Title,
		Description: d.Description,
		ArchivedAt:  edit.At,
	}
	d.History = append([]domain.Snapshot{snap}, d.History...)
	d.Title = edit.Title
	d.Description = edit.Description
}
