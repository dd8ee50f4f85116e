// Package store defines the persistence interface of the catalog and its Badger implementation.
package store

import (
	"context"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// Repository is the document store contract shared by every backend.
//
// Reads never fail on "not found": single lookups return nil and
// collections return an empty slice. Writes that violate a constraint
// return a BAD_USER_INPUT error naming the offending field.
type Repository interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Authors
	FindAuthorByName(ctx context.Context, name string) (*domain.Author, error)
	FindAuthorByID(ctx context.Context, id string) (*domain.Author, error)
	// FindAuthorsByIDs resolves many author references in one round trip.
	// Unknown ids are absent from the returned map.
	FindAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error)
	CreateAuthor(ctx context.Context, name string) (*domain.Author, error)
	// GetOrCreateAuthor inserts an author and, when the name is already taken,
	// returns the stored author instead. created reports which path was taken.
	GetOrCreateAuthor(ctx context.Context, name string) (author *domain.Author, created bool, err error)
	UpdateAuthorBirthYear(ctx context.Context, authorID string, year int) (*domain.Author, error)
	ListAuthors(ctx context.Context) ([]*domain.Author, error)
	CountAuthors(ctx context.Context) (int, error)

	// Books
	CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error)
	// FindBooks returns matching books ordered by creation time.
	FindBooks(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error)
	CountBooks(ctx context.Context) (int, error)

	// Users
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
}

// maxCreateAttempts bounds GetOrCreateAuthor's insert/re-fetch loop.
const maxCreateAttempts = 5

// GetOrCreate runs the insert-then-refetch loop shared by the backends.
// create must report a unique violation as ErrAlreadyExists (or a lost
// transaction race as ErrConflict); fetch must return nil when absent.
func GetOrCreate[T any](ctx context.Context, create func(context.Context) (*T, error), fetch func(context.Context) (*T, error)) (*T, bool, error) {
	var lastErr error
	for range maxCreateAttempts {
		created, err := create(ctx)
		if err == nil {
			return created, true, nil
		}
		if !IsUniqueViolation(err) {
			return nil, false, err
		}
		lastErr = err

		existing, err := fetch(ctx)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, lastErr
}
