package couchdb

import (
	"context"
	"time"

	"github.com/go-kivik/kivik/v4"

	"versioned-notes-server/internal/domain"
)

// AccountStore keys account documents by email, so CouchDB's document-id
// uniqueness is what rejects a second registration.
type AccountStore struct {
	db *kivik.DB
}

func NewAccountStore(db *kivik.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var doc accountDoc
	if err := s.db.Get(ctx, accountDocID(email)).ScanDoc(&doc); err != nil {
		return nil, mapError(err, "account", email)
	}

	return &domain.Account{
		Email:          doc.Email,
		CredentialHash: doc.HashedPassword,
		CreatedAt:      doc.CreatedAt,
	}, nil
}

func (s *AccountStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	created := *account
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	doc := accountDoc{
		ID:             accountDocID(account.Email),
		DocType:        docTypeAccount,
		Email:          account.Email,
		HashedPassword: account.CredentialHash,
		CreatedAt:      created.CreatedAt,
	}

	if _, err := s.db.Put(ctx, doc.ID, doc); err != nil {
		return nil, mapError(err, "account", account.Email)
	}

	return &created, nil
}
