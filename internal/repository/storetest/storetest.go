// Package storetest is a behavioural suite every repository.Backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/internal/repository"
)

// Run exercises b against the store contract. Each subtest registers its own
// accounts so the suite can share one database.
func Run(t *testing.T, b *repository.Backend) {
	t.Helper()

	t.Run("accounts", func(t *testing.T) { testAccounts(t, b) })
	t.Run("create with media", func(t *testing.T) { testCreateWithMedia(t, b) })
	t.Run("create for unknown owner", func(t *testing.T) { testCreateUnknownOwner(t, b) })
	t.Run("ids increase and are never reused", func(t *testing.T) { testIDs(t, b) })
	t.Run("concurrent creates never share an id", func(t *testing.T) { testConcurrentCreates(t, b) })
	t.Run("history grows per edit", func(t *testing.T) { testHistory(t, b) })
	t.Run("ownership", func(t *testing.T) { testOwnership(t, b) })
	t.Run("delete cascades", func(t *testing.T) { testDelete(t, b) })
	t.Run("concurrent updates keep every snapshot", func(t *testing.T) { testConcurrentUpdates(t, b) })
	t.Run("text migration is idempotent", func(t *testing.T) { testMigration(t, b) })
}

func newAccount(t *testing.T, b *repository.Backend) string {
	t.Helper()

	email := fmt.Sprintf("%s@example.com", uuid.NewString())
	_, err := b.Accounts.Create(context.Background(), &domain.Account{Email: email, CredentialHash: "hash"})
	require.NoError(t, err)
	return email
}

func newNote(t *testing.T, b *repository.Backend, owner, title string) *domain.Note {
	t.Helper()

	n, err := b.Notes.Create(context.Background(), &domain.Note{
		Owner:       owner,
		Title:       title,
		Description: title + "-desc",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	})
	require.NoError(t, err)
	return n
}

func testAccounts(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	email := fmt.Sprintf("%s@example.com", uuid.NewString())

	created, err := b.Accounts.Create(ctx, &domain.Account{Email: email, CredentialHash: "h1"})
	require.NoError(t, err)
	assert.Equal(t, email, created.Email)

	found, err := b.Accounts.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, "h1", found.CredentialHash)

	_, err = b.Accounts.Create(ctx, &domain.Account{Email: email, CredentialHash: "h2"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = b.Accounts.FindByEmail(ctx, "missing-"+email)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testCreateWithMedia(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	owner := newAccount(t, b)
	media := []domain.MediaRef{
		{URL: "/uploads/images/x.png", MimeType: "image/png", SizeBytes: 1000, OriginalName: "x.png"},
		{URL: "/uploads/videos/y.mp4", MimeType: "video/mp4", SizeBytes: 2048, OriginalName: "y.mp4"},
	}

	created, err := b.Notes.Create(ctx, &domain.Note{Owner: owner, Title: "VDE=", Description: "RDE=", Media: media})
	require.NoError(t, err)
	assert.Equal(t, media, created.Media)
	assert.Empty(t, created.History)

	got, err := b.Notes.Get(ctx, created.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, "VDE=", got.Title)
	assert.Equal(t, media, got.Media)
	assert.Empty(t, got.History)
}

func testCreateUnknownOwner(t *testing.T, b *repository.Backend) {
	_, err := b.Notes.Create(context.Background(), &domain.Note{Owner: "ghost-" + uuid.NewString(), Title: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testIDs(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	owner := newAccount(t, b)

	first := newNote(t, b, owner, "a")
	second := newNote(t, b, owner, "b")
	assert.Greater(t, second.UniqueID, first.UniqueID)

	require.NoError(t, b.Notes.Delete(ctx, second.UniqueID, owner))

	third := newNote(t, b, owner, "c")
	assert.Greater(t, third.UniqueID, second.UniqueID)
}

// testConcurrentCreates races creators against the unlocked max+1 allocation.
// A creator that loses the race must get ErrConflict; no two creators may end up
// with the same id.
func testConcurrentCreates(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	owner := newAccount(t, b)

	const creators = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	notes := make([]*domain.Note, creators)
	errs := make([]error, creators)
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			notes[i], errs[i] = b.Notes.Create(ctx, &domain.Note{
				Owner:       owner,
				Title:       fmt.Sprintf("c%d", i),
				Description: "d",
				CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	seen := map[int64]bool{}
	for i, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrConflict, "creator %d", i)
			continue
		}
		assert.False(t, seen[notes[i].UniqueID], "id %d handed out twice", notes[i].UniqueID)
		seen[notes[i].UniqueID] = true
	}
	require.NotEmpty(t, seen, "every concurrent create failed")

	listed, err := b.Notes.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, listed, len(seen))
	for _, n := range listed {
		assert.True(t, seen[n.UniqueID], "listed id %d was never returned to a creator", n.UniqueID)
	}
}

func testHistory(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	owner := newAccount(t, b)
	n := newNote(t, b, owner, "v0")

	base := time.Now().UTC().Truncate(time.Millisecond)
	const edits = 3
	for i := 1; i <= edits; i++ {
		updated, err := b.Notes.Update(ctx, n.UniqueID, owner, domain.NoteEdit{
			Title:       fmt.Sprintf("v%d", i),
			Description: fmt.Sprintf("v%d-desc", i),
			At:          base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("v%d", i), updated.Title)
	}

	notes, err := b.Notes.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	got := notes[0]
	assert.Equal(t, "v3", got.Title)
	require.Len(t, got.History, edits)
	for i, snap := range got.History {
		assert.Equal(t, fmt.Sprintf("v%d", edits-1-i), snap.Title)
		assert.Equal(t, fmt.Sprintf("v%d-desc", edits-1-i), snap.Description)
		if i > 0 {
			assert.True(t, !snap.ArchivedAt.After(got.History[i-1].ArchivedAt), "history must be newest first")
		}
	}
}

func testOwnership(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	alice := newAccount(t, b)
	bob := newAccount(t, b)

	n := newNote(t, b, alice, "mine")
	newNote(t, b, bob, "his")

	_, err := b.Notes.Update(ctx, n.UniqueID, bob, domain.NoteEdit{Title: "x", Description: "y", At: time.Now()})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = b.Notes.Delete(ctx, n.UniqueID, bob)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = b.Notes.Update(ctx, 1<<40, alice, domain.NoteEdit{Title: "x", Description: "y", At: time.Now()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = b.Notes.Delete(ctx, 1<<40, alice)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	aliceNotes, err := b.Notes.ListByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, "mine", aliceNotes[0].Title)
	assert.Empty(t, aliceNotes[0].History)
}

func testDelete(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	owner := newAccount(t, b)
	n := newNote(t, b, owner, "gone")

	_, err := b.Notes.Update(ctx, n.UniqueID, owner, domain.NoteEdit{Title: "x", Description: "y", At: time.Now()})
	require.NoError(t, err)

	require.NoError(t, b.Notes.Delete(ctx, n.UniqueID, owner))

	_, err = b.Notes.Get(ctx, n.UniqueID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	notes, err := b.Notes.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func testConcurrentUpdates(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	owner := newAccount(t, b)
	n := newNote(t, b, owner, "start")

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.Notes.Update(ctx, n.UniqueID, owner, domain.NoteEdit{
				Title:       fmt.Sprintf("w%d", i),
				Description: "d",
				At:          time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrTransient)
		}
	}

	got, err := b.Notes.Get(ctx, n.UniqueID)
	require.NoError(t, err)
	assert.Len(t, got.History, succeeded)
}

func testMigration(t *testing.T, b *repository.Backend) {
	ctx := context.Background()
	owner := newAccount(t, b)
	n := newNote(t, b, owner, "legacy")
	_, err := b.Notes.Update(ctx, n.UniqueID, owner, domain.NoteEdit{Title: "newer", Description: "text", At: time.Now()})
	require.NoError(t, err)

	tag := func(s string) (string, bool) {
		if s == "" || (len(s) > 2 && s[:2] == "m:") {
			return s, false
		}
		return "m:" + s, true
	}

	_, err = b.Migrator.RewriteText(ctx, tag)
	require.NoError(t, err)

	got, err := b.Notes.Get(ctx, n.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, "m:newer", got.Title)
	require.Len(t, got.History, 1)
	assert.Equal(t, "m:legacy", got.History[0].Title)

	again, err := b.Migrator.RewriteText(ctx, tag)
	require.NoError(t, err)
	assert.Zero(t, again.NotesUpdated)
	assert.Zero(t, again.SnapshotsUpdated)
}
