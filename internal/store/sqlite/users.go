package sqlite

import (
	"context"
	"encoding/json/v2"
	"fmt"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/store"
)

// CreateUser stores a new user; the UNIQUE username column rejects duplicates.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := s.validator.Validate(user); err != nil {
		return nil, err
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, err
	}

	stored := *user
	stored.ID = userID
	stored.InitTimestamps()

	doc, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, doc, created_at) VALUES (?, ?, ?, ?)`,
		stored.ID, stored.Username, doc, formatTime(stored.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ValidationFailure(store.ErrAlreadyExists.WithField("username").WithCause(err),
				"username must be unique", "username")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &stored, nil
}

// FindUserByUsername returns the user or nil.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanDoc[domain.User](s.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE username = ?`, username))
}

// FindUserByID returns the user or nil.
func (s *Store) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return scanDoc[domain.User](s.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE id = ?`, userID))
}
