package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"versioned-notes-server/internal/codec"
	"versioned-notes-server/internal/domain"
)

type noteFixture struct {
	accounts *mockAccountStore
	notes    *mockNoteStore
	service  *NoteService
}

func newNoteFixture(t *testing.T, emails ...string) *noteFixture {
	t.Helper()

	f := &noteFixture{accounts: newMockAccountStore(), notes: newMockNoteStore()}
	for _, e := range emails {
		if _, err := f.accounts.Create(context.Background(), &domain.Account{Email: e, CredentialHash: "h"}); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	f.service = NewNoteService(f.accounts, f.notes)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return f
}

func (f *noteFixture) create(t *testing.T, email, title, desc string) *domain.NoteResponse {
	t.Helper()

	n, err := f.service.Create(context.Background(), email, &domain.CreateNoteRequest{Title: title, Description: desc})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return n
}

func TestNoteService_CreateThenUpdateScenario(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	ctx := context.Background()

	created := f.create(t, "a@x.com", "T1", "D1")
	if created.UniqueID != 1 || created.Title != "T1" || created.Description != "D1" {
		t.Fatalf("Create() = %+v, want unique_id 1, T1, D1", created)
	}
	if len(created.History) != 0 {
		t.Errorf("Create() history = %v, want empty", created.History)
	}

	updated, err := f.service.Update(ctx, "a@x.com", 1, &domain.UpdateNoteRequest{Title: "T2", Description: "D2"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.UniqueID != 1 || updated.Title != "T2" || updated.Description != "D2" {
		t.Errorf("Update() = %+v, want unique_id 1, T2, D2", updated)
	}

	list, err := f.service.List(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List() len = %d, want 1", len(list))
	}
	if len(list[0].History) != 1 {
		t.Fatalf("history len = %d, want 1", len(list[0].History))
	}
	if h := list[0].History[0]; h.Title != "T1" || h.Description != "D1" {
		t.Errorf("history[0] = %+v, want T1/D1", h)
	}
}

func TestNoteService_StoresEncodedText(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	ctx := context.Background()

	f.create(t, "a@x.com", "T1", "D1")
	if _, err := f.service.Update(ctx, "a@x.com", 1, &domain.UpdateNoteRequest{Title: "T2", Description: "D2"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	stored := f.notes.notes[1]
	if stored.Title != codec.Encode("T2") || stored.Description != codec.Encode("D2") {
		t.Errorf("live fields stored as %q/%q, want encoded", stored.Title, stored.Description)
	}
	if stored.History[0].Title != codec.Encode("T1") || stored.History[0].Description != codec.Encode("D1") {
		t.Errorf("snapshot stored as %+v, want encoded", stored.History[0])
	}
}

func TestNoteService_LegacyPlaintextDecodesUnchanged(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	f.notes.notes[1] = &domain.Note{UniqueID: 1, Owner: "a@x.com", Title: "plain title", Description: "%%%"}

	n, err := f.service.Get(context.Background(), "a@x.com", 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if n.Title != "plain title" || n.Description != "%%%" {
		t.Errorf("Get() = %q/%q, want legacy text unchanged", n.Title, n.Description)
	}
}

func TestNoteService_HistoryGrowsByOnePerEdit(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	ctx := context.Background()
	f.create(t, "a@x.com", "v0", "d0")

	const edits = 5
	for i := 1; i <= edits; i++ {
		req := &domain.UpdateNoteRequest{Title: fmt.Sprintf("v%d", i), Description: fmt.Sprintf("d%d", i)}
		if _, err := f.service.Update(ctx, "a@x.com", 1, req); err != nil {
			t.Fatalf("Update() #%d error = %v", i, err)
		}

		n, err := f.service.Get(ctx, "a@x.com", 1)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(n.History) != i {
			t.Fatalf("after %d edits history len = %d", i, len(n.History))
		}
	}

	n, _ := f.service.Get(ctx, "a@x.com", 1)
	for i, snap := range n.History {
		if want := fmt.Sprintf("v%d", edits-1-i); snap.Title != want {
			t.Errorf("history[%d].Title = %q, want %q", i, snap.Title, want)
		}
		if i > 0 && !snap.ArchivedAt.Before(n.History[i-1].ArchivedAt) {
			t.Errorf("history[%d] archived at %v, not older than %v", i, snap.ArchivedAt, n.History[i-1].ArchivedAt)
		}
	}
}

func TestNoteService_UpdateResponseOmitsHistory(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	f.create(t, "a@x.com", "T1", "D1")

	updated, err := f.service.Update(context.Background(), "a@x.com", 1, &domain.UpdateNoteRequest{Title: "T2", Description: "D2"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.History == nil || len(updated.History) != 0 {
		t.Errorf("Update() history = %#v, want empty non-nil", updated.History)
	}
}

func TestNoteService_Ownership(t *testing.T) {
	f := newNoteFixture(t, "a@x.com", "b@x.com")
	ctx := context.Background()
	f.create(t, "a@x.com", "mine", "mine")

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name: "update by other account",
			call: func() error {
				_, err := f.service.Update(ctx, "b@x.com", 1, &domain.UpdateNoteRequest{Title: "x", Description: "y"})
				return err
			},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "delete by other account",
			call:    func() error { return f.service.Delete(ctx, "b@x.com", 1) },
			wantErr: domain.ErrForbidden,
		},
		{
			name: "read by other account",
			call: func() error {
				_, err := f.service.Get(ctx, "b@x.com", 1)
				return err
			},
			wantErr: domain.ErrForbidden,
		},
		{
			name: "update missing note",
			call: func() error {
				_, err := f.service.Update(ctx, "a@x.com", 99, &domain.UpdateNoteRequest{Title: "x", Description: "y"})
				return err
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "delete missing note",
			call:    func() error { return f.service.Delete(ctx, "a@x.com", 99) },
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	list, err := f.service.List(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() for b@x.com = %d notes, want 0", len(list))
	}

	n, _ := f.service.Get(ctx, "a@x.com", 1)
	if n.Title != "mine" || len(n.History) != 0 {
		t.Errorf("forbidden calls changed the note: %+v", n)
	}
}

func TestNoteService_UnknownIdentityIsUnauthenticated(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	ctx := context.Background()
	f.create(t, "a@x.com", "T", "D")

	calls := map[string]func() error{
		"create": func() error {
			_, err := f.service.Create(ctx, "ghost@x.com", &domain.CreateNoteRequest{Title: "x", Description: "y"})
			return err
		},
		"list": func() error {
			_, err := f.service.List(ctx, "ghost@x.com")
			return err
		},
		"update": func() error {
			_, err := f.service.Update(ctx, "ghost@x.com", 1, &domain.UpdateNoteRequest{Title: "x", Description: "y"})
			return err
		},
		"delete": func() error { return f.service.Delete(ctx, "ghost@x.com", 1) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if !errors.Is(err, domain.ErrUnauthenticated) {
				t.Errorf("error = %v, want ErrUnauthenticated", err)
			}
			if errors.Is(err, domain.ErrForbidden) {
				t.Error("unknown identity must not be reported as forbidden")
			}
		})
	}
}

func TestNoteService_IDsIncreaseWithoutReuse(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	ctx := context.Background()

	var last int64
	for i := 0; i < 3; i++ {
		n := f.create(t, "a@x.com", "t", "d")
		if n.UniqueID <= last {
			t.Fatalf("id %d not greater than %d", n.UniqueID, last)
		}
		last = n.UniqueID
	}

	if err := f.service.Delete(ctx, "a@x.com", last); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	n := f.create(t, "a@x.com", "t", "d")
	if n.UniqueID <= last {
		t.Errorf("id %d reused after deleting %d", n.UniqueID, last)
	}
}

func TestNoteService_ListAscendingByID(t *testing.T) {
	f := newNoteFixture(t, "a@x.com", "b@x.com")
	f.create(t, "a@x.com", "1", "1")
	f.create(t, "b@x.com", "2", "2")
	f.create(t, "a@x.com", "3", "3")

	list, err := f.service.List(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].UniqueID != 1 || list[1].UniqueID != 3 {
		t.Errorf("List() ids = %v, want [1 3]", ids(list))
	}
}

func ids(list []*domain.NoteResponse) []int64 {
	out := make([]int64, 0, len(list))
	for _, n := range list {
		out = append(out, n.UniqueID)
	}
	return out
}

func TestNoteService_CreateWithMedia(t *testing.T) {
	f := newNoteFixture(t, "a@x.com")
	media := []domain.MediaRef{{URL: "/uploads/images/x.png", MimeType: "image/png", SizeBytes: 1000, OriginalName: "x.png"}}

	n, err := f.service.Create(context.Background(), "a@x.com", &domain.CreateNoteRequest{Title: "T", Description: "D", Media: media})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(n.Media) != 1 || n.Media[0] != media[0] {
		t.Errorf("Create() media = %+v, want %+v", n.Media, media)
	}

	list, _ := f.service.List(context.Background(), "a@x.com")
	if len(list[0].Media) != 1 || list[0].Media[0] != media[0] {
		t.Errorf("List() media = %+v, want %+v", list[0].Media, media)
	}
}
