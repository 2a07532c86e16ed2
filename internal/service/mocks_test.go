package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/internal/repository"
)

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	err      error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: make(map[string]*domain.Account)}
}

func (m *mockAccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.accounts[email]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.Email]; ok {
		return nil, fmt.Errorf("account %s: %w", account.Email, domain.ErrConflict)
	}
	cp := *account
	m.accounts[account.Email] = &cp
	return &cp, nil
}

// mockNoteStore keeps notes the way both real backends do: encoded text in,
// max(live, retired)+1 ids, newest-first history.
type mockNoteStore struct {
	mu         sync.Mutex
	notes      map[int64]*domain.Note
	maxRetired int64
}

func newMockNoteStore() *mockNoteStore {
	return &mockNoteStore{notes: make(map[int64]*domain.Note)}
}

func clone(n *domain.Note) *domain.Note {
	cp := *n
	cp.History = append([]domain.Snapshot{}, n.History...)
	cp.Media = append([]domain.MediaRef{}, n.Media...)
	return &cp
}

func (m *mockNoteStore) Create(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.maxRetired
	for id := range m.notes {
		if id > next {
			next = id
		}
	}

	n := clone(note)
	n.UniqueID = next + 1
	n.History = []domain.Snapshot{}
	m.notes[n.UniqueID] = n
	return clone(n), nil
}

func (m *mockNoteStore) Get(ctx context.Context, id int64) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %d: %w", id, domain.ErrNotFound)
	}
	return clone(n), nil
}

func (m *mockNoteStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	notes := []*domain.Note{}
	for _, n := range m.notes {
		if n.Owner == owner {
			notes = append(notes, clone(n))
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].UniqueID < notes[j].UniqueID })
	return notes, nil
}

func (m *mockNoteStore) Update(ctx context.Context, id int64, owner string, edit domain.NoteEdit) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %d: %w", id, domain.ErrNotFound)
	}
	if n.Owner != owner {
		return nil, fmt.Errorf("note %d: %w", id, domain.ErrForbidden)
	}

	snap := domain.Snapshot{Title: n.Title, Description: n.Description, ArchivedAt: edit.At}
	n.History = append([]domain.Snapshot{snap}, n.History...)
	n.Title = edit.Title
	n.Description = edit.Description

	out := clone(n)
	out.History = nil
	return out, nil
}

func (m *mockNoteStore) Delete(ctx context.Context, id int64, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[id]
	if !ok {
		return fmt.Errorf("note %d: %w", id, domain.ErrNotFound)
	}
	if n.Owner != owner {
		return fmt.Errorf("note %d: %w", id, domain.ErrForbidden)
	}
	delete(m.notes, id)
	if id > m.maxRetired {
		m.maxRetired = id
	}
	return nil
}

func (m *mockNoteStore) RewriteText(ctx context.Context, rewrite func(string) (string, bool)) (repository.MigrationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats repository.MigrationStats
	for _, n := range m.notes {
		stats.NotesScanned++

		var tc, dc bool
		n.Title, tc = rewrite(n.Title)
		n.Description, dc = rewrite(n.Description)
		if tc || dc {
			stats.NotesUpdated++
		}

		for i := range n.History {
			n.History[i].Title, tc = rewrite(n.History[i].Title)
			n.History[i].Description, dc = rewrite(n.History[i].Description)
			if tc || dc {
				stats.SnapshotsUpdated++
			}
		}
	}
	return stats, nil
}
