package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore is the slice of the repository the service needs. Declared here
// so tests can swap in an in-memory implementation.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
}

type Service struct {
	users  UserStore
	tokens *TokenService
}

func NewService(users UserStore, tokens *TokenService) *Service {
	return &Service{users: users, tokens: tokens}
}

func (s *Service) Tokens() *TokenService { return s.tokens }

// Login verifies the credentials against the user store and issues a fresh
// access/refresh pair. A missing user and a wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssueTokenPair(user.Identity())
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	return pair, nil
}

// Refresh rotates a refresh token into a new pair. Both failure kinds force
// re-login; there is no second refresh attempt.
func (s *Service) Refresh(refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, ErrRefreshInvalid
	}

	return s.tokens.Refresh(refreshToken)
}
