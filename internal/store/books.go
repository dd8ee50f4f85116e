package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
)

// CreateBook validates and stores a new book. The ID and timestamps are assigned here.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	if err := s.validator.Validate(book); err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, err
	}

	stored := *book
	stored.Genres = slices.Clone(book.Genres)
	stored.ID = bookID
	stored.InitTimestamps()

	if err := s.Books.Create(ctx, stored.ID, &stored); err != nil {
		if IsUniqueViolation(err) {
			return nil, ValidationFailure(err, "book already exists", "id")
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("book created", "book_id", stored.ID, "title", stored.Title, "author_id", stored.AuthorID)
	}
	return &stored, nil
}

// FindBooks returns books matching filter in creation order.
// A genre filter is served from the genre index.
func (s *Store) FindBooks(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error) {
	seq := s.Books.List(ctx)
	if filter.Genre != "" {
		seq = s.Books.ListByIndex(ctx, indexBookGenre, filter.Genre)
	}

	books := make([]*domain.Book, 0)
	for book, err := range seq {
		if err != nil {
			return nil, fmt.Errorf("find books: %w", err)
		}
		if filter.Matches(book) {
			books = append(books, book)
		}
	}

	slices.SortStableFunc(books, func(a, b *domain.Book) int {
		return compareRecords(a.Record, b.Record)
	})
	return books, nil
}

// CountBooks returns the number of books.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	return s.Books.Count(ctx)
}
