package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"versioned-notes-server/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query, args, err := psql.
		Select("email", "hashed_password", "created_at").
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var a domain.Account
	if err := s.db.QueryRow(ctx, query, args...).Scan(&a.Email, &a.CredentialHash, &a.CreatedAt); err != nil {
		return nil, mapError(err, "account", email)
	}
	return &a, nil
}

// Create relies on users_email_key; a duplicate email surfaces as ErrConflict.
func (s *AccountStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := psql.
		Insert("users").
		Columns("email", "hashed_password", "created_at").
		Values(account.Email, account.CredentialHash, createdAt).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	created := *account
	if err := s.db.QueryRow(ctx, query, args...).Scan(&created.CreatedAt); err != nil {
		return nil, mapError(err, "account", account.Email)
	}
	return &created, nil
}
