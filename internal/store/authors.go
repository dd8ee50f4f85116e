package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
)

// FindAuthorByName looks an author up by exact name.
func (s *Store) FindAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	return orNil(s.Authors.GetByIndex(ctx, indexAuthorName, name))
}

// FindAuthorByID returns the author or nil.
func (s *Store) FindAuthorByID(ctx context.Context, authorID string) (*domain.Author, error) {
	return orNil(s.Authors.Get(ctx, authorID))
}

// FindAuthorsByIDs batch-resolves author references in one read transaction.
func (s *Store) FindAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error) {
	if len(ids) == 0 {
		return map[string]*domain.Author{}, nil
	}
	return s.Authors.GetMany(ctx, ids)
}

// CreateAuthor inserts a new author. A taken name is reported as a
// validation failure on "name" that still satisfies IsUniqueViolation.
func (s *Store) CreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	authorID, err := id.Generate(id.PrefixAuthor)
	if err != nil {
		return nil, err
	}

	author := &domain.Author{Name: name}
	author.ID = authorID
	author.InitTimestamps()

	if err := s.validator.Validate(author); err != nil {
		return nil, err
	}

	if err := s.Authors.Create(ctx, author.ID, author); err != nil {
		if IsUniqueViolation(err) {
			return nil, ValidationFailure(err, "author name must be unique", "name")
		}
		return nil, fmt.Errorf("create author: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("author created", "author_id", author.ID, "name", author.Name)
	}
	return author, nil
}

// GetOrCreateAuthor inserts first and re-fetches on a unique conflict.
// Badger transactions are serializable, so two callers racing on a new
// name cannot both commit; the loser observes the winner's document.
func (s *Store) GetOrCreateAuthor(ctx context.Context, name string) (*domain.Author, bool, error) {
	return GetOrCreate(ctx,
		func(ctx context.Context) (*domain.Author, error) { return s.CreateAuthor(ctx, name) },
		func(ctx context.Context) (*domain.Author, error) { return s.FindAuthorByName(ctx, name) },
	)
}

// UpdateAuthorBirthYear sets born on an existing author.
func (s *Store) UpdateAuthorBirthYear(ctx context.Context, authorID string, year int) (*domain.Author, error) {
	author, err := s.Authors.Get(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("get author %s: %w", authorID, err)
	}

	author.SetBorn(year)

	if err := s.Authors.Update(ctx, author.ID, author); err != nil {
		return nil, fmt.Errorf("update author %s: %w", authorID, err)
	}
	return author, nil
}

// ListAuthors returns every author in creation order.
func (s *Store) ListAuthors(ctx context.Context) ([]*domain.Author, error) {
	authors, err := collect(s.Authors.List(ctx))
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	slices.SortStableFunc(authors, func(a, b *domain.Author) int {
		return compareRecords(a.Record, b.Record)
	})
	return authors, nil
}

// CountAuthors returns the number of authors.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	return s.Authors.Count(ctx)
}

func compareRecords(a, b domain.Record) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}
