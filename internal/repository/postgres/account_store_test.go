package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versioned-notes-server/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestAccountStore_FindByEmail(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT email, hashed_password, created_at FROM users WHERE email = \$1`).
					WithArgs("a@x.com").
					WillReturnRows(pgxmock.NewRows([]string{"email", "hashed_password", "created_at"}).
						AddRow("a@x.com", "$2a$12$hash", now))
			},
		},
		{
			name: "not found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM users`).
					WithArgs("a@x.com").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)

			account, err := NewAccountStore(mock).FindByEmail(context.Background(), "a@x.com")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "a@x.com", account.Email)
				assert.Equal(t, "$2a$12$hash", account.CredentialHash)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountStore_Create(t *testing.T) {
	now := time.Now()

	t.Run("created", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO users \(email,hashed_password,created_at\) VALUES \(\$1,\$2,\$3\) RETURNING created_at`).
			WithArgs("a@x.com", "hash", pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

		account, err := NewAccountStore(mock).Create(context.Background(), &domain.Account{Email: "a@x.com", CredentialHash: "hash"})
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", account.Email)
		assert.Equal(t, now, account.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("a@x.com", "hash", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "users_email_key"})

		_, err := NewAccountStore(mock).Create(context.Background(), &domain.Account{Email: "a@x.com", CredentialHash: "hash"})
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
