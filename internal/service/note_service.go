package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"versioned-notes-server/internal/codec"
	"versioned-notes-server/internal/domain"
	"versioned-notes-server/internal/repository"
)

// NoteService works on raw text. Everything handed to the store is encoded and
// everything read back is decoded, including archived snapshots.
type NoteService struct {
	accounts repository.AccountStore
	notes    repository.NoteStore
	now      func() time.Time
}

func NewNoteService(accounts repository.AccountStore, notes repository.NoteStore) *NoteService {
	return &NoteService{
		accounts: accounts,
		notes:    notes,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// resolve maps an authenticated identity to its account. An identity without an
// account is unauthenticated, never forbidden.
func (s *NoteService) resolve(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no account for %s", domain.ErrUnauthenticated, email)
		}
		return nil, err
	}
	return account, nil
}

func (s *NoteService) Create(ctx context.Context, email string, req *domain.CreateNoteRequest) (*domain.NoteResponse, error) {
	account, err := s.resolve(ctx, email)
	if err != nil {
		return nil, err
	}

	note, err := s.notes.Create(ctx, &domain.Note{
		Owner:       account.Email,
		Title:       codec.Encode(req.Title),
		Description: codec.Encode(req.Description),
		CreatedAt:   s.now(),
		Media:       req.Media,
	})
	if err != nil {
		return nil, err
	}

	return toResponse(note), nil
}

func (s *NoteService) List(ctx context.Context, email string) ([]*domain.NoteResponse, error) {
	account, err := s.resolve(ctx, email)
	if err != nil {
		return nil, err
	}

	notes, err := s.notes.ListByOwner(ctx, account.Email)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		responses = append(responses, toResponse(n))
	}
	return responses, nil
}

func (s *NoteService) Get(ctx context.Context, email string, id int64) (*domain.NoteResponse, error) {
	account, err := s.resolve(ctx, email)
	if err != nil {
		return nil, err
	}

	note, err := s.notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if note.Owner != account.Email {
		return nil, fmt.Errorf("note %d: %w", id, domain.ErrForbidden)
	}

	return toResponse(note), nil
}

// Update archives the current title and description and installs the new ones.
// The response carries live fields and media only.
func (s *NoteService) Update(ctx context.Context, email string, id int64, req *domain.UpdateNoteRequest) (*domain.NoteResponse, error) {
	account, err := s.resolve(ctx, email)
	if err != nil {
		return nil, err
	}

	note, err := s.notes.Update(ctx, id, account.Email, domain.NoteEdit{
		Title:       codec.Encode(req.Title),
		Description: codec.Encode(req.Description),
		At:          s.now(),
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(note)
	resp.History = []domain.Snapshot{}
	return resp, nil
}

func (s *NoteService) Delete(ctx context.Context, email string, id int64) error {
	account, err := s.resolve(ctx, email)
	if err != nil {
		return err
	}

	return s.notes.Delete(ctx, id, account.Email)
}

func toResponse(n *domain.Note) *domain.NoteResponse {
	history := make([]domain.Snapshot, 0, len(n.History))
	for _, snap := range n.History {
		history = append(history, domain.Snapshot{
			Title:       codec.Decode(snap.Title),
			Description: codec.Decode(snap.Description),
			ArchivedAt:  snap.ArchivedAt,
		})
	}

	media := n.Media
	if media == nil {
		media = []domain.MediaRef{}
	}

	return &domain.NoteResponse{
		UniqueID:    n.UniqueID,
		Owner:       n.Owner,
		Title:       codec.Decode(n.Title),
		Description: codec.Decode(n.Description),
		CreatedAt:   n.CreatedAt,
		History:     history,
		Media:       media,
	}
}
