package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/internal/repository"
	"versioned-notes-server/pkg/hash"
	"versioned-notes-server/pkg/jwt"
)

const tokenTypeBearer = "Bearer"

type AuthService struct {
	accounts          repository.AccountStore
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
}

func NewAuthService(accounts repository.AccountStore, jwtSecret string, jwtExp, refreshExp time.Duration) *AuthService {
	return &AuthService{
		accounts:          accounts,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
	}
}

// Register stores a new account with a bcrypt credential hash. A taken email is
// reported by the store as domain.ErrConflict.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.Account, error) {
	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		if errors.Is(err, hash.ErrPasswordTooShort) {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := s.accounts.Create(ctx, &domain.Account{
		Email:          req.Email,
		CredentialHash: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// Login never tells an unknown email apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
		}
		return nil, err
	}

	if err := hash.Compare(account.CredentialHash, req.Password); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}

	accessToken, err := jwt.GenerateToken(account.Email, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(account.Email, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		TokenType:    tokenTypeBearer,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateTokenOfType(req.RefreshToken, s.jwtSecret, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", domain.ErrUnauthenticated)
	}

	if _, err := s.accounts.FindByEmail(ctx, claims.Email); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", domain.ErrUnauthenticated)
		}
		return nil, err
	}

	accessToken, err := jwt.GenerateToken(claims.Email, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}

// Authenticate turns an access token into the identity email it was issued to.
// It does not consult the store; NoteService resolves the account separately.
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := jwt.ValidateTokenOfType(token, s.jwtSecret, jwt.TokenTypeAccess)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return claims.Email, nil
}
