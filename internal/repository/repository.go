package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"versioned-notes-server/internal/domain"
)

// AccountStore owns account records. Email is the key.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
}

// NoteStore persists notes in encoded form. Implementations allocate ids, keep the
// history append and the live-field update in one conditional write, and report
// only domain sentinels.
type NoteStore interface {
	Create(ctx context.Context, note *domain.Note) (*domain.Note, error)
	Get(ctx context.Context, id int64) (*domain.Note, error)
	ListByOwner(ctx context.Context, owner string) ([]*domain.Note, error)
	Update(ctx context.Context, id int64, owner string, edit domain.NoteEdit) (*domain.Note, error)
	Delete(ctx context.Context, id int64, owner string) error
}

// TextMigrator rewrites stored note text. Rewrite is called with every live and
// archived title and description; it returns the replacement and whether it
// differs.
type TextMigrator interface {
	RewriteText(ctx context.Context, rewrite func(string) (string, bool)) (MigrationStats, error)
}

type MigrationStats struct {
	NotesScanned     int
	NotesUpdated     int
	SnapshotsUpdated int
}

// Backend is one storage implementation selected at startup.
type Backend struct {
	Name     string
	Accounts AccountStore
	Notes    NoteStore
	Migrator TextMigrator
	Close    func() error
}

// ErrStaleRevision is returned by a conditional write that lost a race with a
// concurrent writer of the same note.
var ErrStaleRevision = errors.New("stale revision")

const (
	retryMaxAttempts     = 8
	retryInitialInterval = 10 * time.Millisecond
	retryMaxInterval     = 250 * time.Millisecond
)

// RetryStale runs op until it succeeds, fails with an error other than
// ErrStaleRevision, the context ends or the attempts run out. Exhausted retries
// surface as domain.ErrTransient.
func RetryStale(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval

	b := backoff.WithContext(backoff.WithMaxRetries(policy, retryMaxAttempts), ctx)

	err := backoff.Retry(func() error {
		if err := op(); err != nil {
			if errors.Is(err, ErrStaleRevision) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, b)

	if errors.Is(err, ErrStaleRevision) {
		return fmt.Errorf("%w: note kept changing during update", domain.ErrTransient)
	}
	return err
}
