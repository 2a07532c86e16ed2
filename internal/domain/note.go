package domain

import "time"

// Note is the stored shape of a note. Title, Description and every Snapshot hold
// encoded text while inside the repository layer.
type Note struct {
	UniqueID    int64      `json:"unique_id"`
	Owner       string     `json:"owner_key"`
	Title       string     `json:"note_title"`
	Description string     `json:"note_description"`
	CreatedAt   time.Time  `json:"note_created"`
	History     []Snapshot `json:"note_history"`
	Media       []MediaRef `json:"media"`
}

// Snapshot is the value of a note's live fields before an edit.
type Snapshot struct {
	Title       string    `json:"note_title"`
	Description string    `json:"note_description"`
	ArchivedAt  time.Time `json:"archived_at"`
}

// NoteEdit carries the new live values of an update together with the archival
// timestamp for the snapshot it produces.
type NoteEdit struct {
	Title       string
	Description string
	At          time.Time
}

type CreateNoteRequest struct {
	Title       string     `json:"note_title" validate:"required,min=1"`
	Description string     `json:"note_description" validate:"required,min=1"`
	Media       []MediaRef `json:"media" validate:"omitempty,dive"`
}

type UpdateNoteRequest struct {
	Title       string `json:"note_title" validate:"required,min=1"`
	Description string `json:"note_description" validate:"required,min=1"`
}

type NoteResponse struct {
	UniqueID    int64      `json:"unique_id"`
	Owner       string     `json:"owner_key"`
	Title       string     `json:"note_title"`
	Description string     `json:"note_description"`
	CreatedAt   time.Time  `json:"note_created"`
	History     []Snapshot `json:"note_history"`
	Media       []MediaRef `json:"media"`
}
