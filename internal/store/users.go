package store

import (
	"context"
	"fmt"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
)

// CreateUser stores a new user. Usernames are unique.
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

	if err := s.Users.Create(ctx, stored.ID, &stored); err != nil {
		if IsUniqueViolation(err) {
			return nil, ValidationFailure(err, "username must be unique", "username")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &stored, nil
}

// FindUserByUsername returns the user or nil.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return orNil(s.Users.GetByIndex(ctx, indexUserUsername, username))
}

// FindUserByID returns the user or nil.
func (s *Store) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return orNil(s.Users.Get(ctx, userID))
}
