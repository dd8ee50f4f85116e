package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

const (
	msgCreateUserFailed = "Creating the user failed"
	msgWrongCredentials = "wrong credentials"
)

// AuthService handles registration, login, and token verification.
type AuthService struct {
	store    store.Repository
	tokens   *auth.TokenService
	password *auth.SharedPassword
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(repo store.Repository, tokens *auth.TokenService, password *auth.SharedPassword, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthService{
		store:    repo,
		tokens:   tokens,
		password: password,
		logger:   logger,
	}
}

// CreateUser registers a user. A taken username is a BAD_USER_INPUT error.
func (s *AuthService) CreateUser(ctx context.Context, username, favoriteGenre string) (*domain.User, error) {
	user, err := s.store.CreateUser(ctx, &domain.User{
		Username:      username,
		FavoriteGenre: favoriteGenre,
	})
	if err != nil {
		return nil, relabel(err, msgCreateUserFailed, map[string]string{"favorite_genre": "favoriteGenre"})
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))

	return user, nil
}

// Login checks the shared password and issues a token for username.
// Unknown users and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("find user %q: %w", username, err)
	}

	// The password is checked for unknown users too.
	passwordOK := s.password.Matches(password)
	if user == nil || !passwordOK {
		s.logger.InfoContext(ctx, "login rejected", slog.String("username", username))
		return "", domainerrors.InvalidCredentials(msgWrongCredentials)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return token, nil
}

// VerifyToken resolves a bearer token to its user. Any failure means the
// request is anonymous; the error says why, for logging only.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", claims.UserID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("token user %s: %w", claims.UserID, store.ErrNotFound)
	}
	return user, nil
}
