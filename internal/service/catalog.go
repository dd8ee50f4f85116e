// Package service holds the catalog's business operations. Resolvers call
// into it with the viewer resolved from the request; it never reads the
// request itself.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Client-facing failure messages.
const (
	msgNotAuthenticated = "not authenticated"
	msgAddAuthorFailed  = "Adding new Author failed"
	msgSaveBookFailed   = "Saving book failed"
	msgEditAuthorFailed = "Modifying author failed"
)

// Publisher is the part of the event bus the catalog needs.
type Publisher interface {
	Publish(ev events.Event) int
}

// CatalogService implements the book and author operations.
type CatalogService struct {
	store    store.Repository
	bus      Publisher
	enricher *dto.Enricher
	logger   *slog.Logger

	// authors coalesces concurrent get-or-create calls for the same name.
	authors singleflight.Group
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo store.Repository, bus Publisher, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogService{
		store:    repo,
		bus:      bus,
		enricher: dto.NewEnricher(repo, logger),
		logger:   logger,
	}
}

// AllBooksFilter narrows AllBooks. Nil fields do not filter.
type AllBooksFilter struct {
	Author *string
	Genre  *string
}

// AddBookRequest carries the addBook arguments.
type AddBookRequest struct {
	Title     string
	Author    string
	Published int
	Genres    []string
}

// BookCount returns the number of books.
func (s *CatalogService) BookCount(ctx context.Context) (int, error) {
	return s.store.CountBooks(ctx)
}

// AuthorCount returns the number of authors.
func (s *CatalogService) AuthorCount(ctx context.Context) (int, error) {
	return s.store.CountAuthors(ctx)
}

// AllBooks lists books with their authors resolved.
//
// The genre filter runs in the store. The author filter compares the
// resolved author name after the fetch, so a book whose author cannot be
// resolved never matches it. An empty string does not filter. Unexpected
// failures, including a failed author lookup, are logged and reported as a
// generic internal error.
func (s *CatalogService) AllBooks(ctx context.Context, filter AllBooksFilter) ([]*dto.Book, error) {
	var storeFilter domain.BookFilter
	if filter.Genre != nil {
		storeFilter.Genre = *filter.Genre
	}

	books, err := s.store.FindBooks(ctx, storeFilter)
	if err != nil {
		s.logger.ErrorContext(ctx, "allBooks: find books failed",
			slog.String("genre", storeFilter.Genre),
			slog.String("error", err.Error()))
		return nil, domainerrors.Internal(err)
	}

	enriched, err := s.enricher.EnrichBooks(ctx, books)
	if err != nil {
		return nil, domainerrors.Internal(err)
	}
	if filter.Author == nil || *filter.Author == "" {
		return enriched, nil
	}

	out := make([]*dto.Book, 0, len(enriched))
	for _, b := range enriched {
		if b.Author != nil && b.Author.Name == *filter.Author {
			out = append(out, b)
		}
	}
	return out, nil
}

// AllAuthors returns every author with a book count computed from a
// single scan of the books.
func (s *CatalogService) AllAuthors(ctx context.Context) ([]*domain.AuthorWithCount, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}

	books, err := s.store.FindBooks(ctx, domain.BookFilter{})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	counts := make(map[string]int, len(authors))
	for _, b := range books {
		counts[b.AuthorID]++
	}

	out := make([]*domain.AuthorWithCount, len(authors))
	for i, a := range authors {
		out[i] = &domain.AuthorWithCount{Author: *a, BookCount: counts[a.ID]}
	}
	return out, nil
}

// AddBook stores a book, creating its author on first use, and publishes
// a BOOK_ADDED event once the book is persisted.
func (s *CatalogService) AddBook(ctx context.Context, viewer *domain.User, req AddBookRequest) (*dto.Book, error) {
	if viewer == nil {
		return nil, domainerrors.Unauthenticated(msgNotAuthenticated)
	}

	author, err := s.getOrCreateAuthor(ctx, req.Author)
	if err != nil {
		return nil, relabel(err, msgAddAuthorFailed, map[string]string{"name": "author"})
	}

	book, err := s.store.CreateBook(ctx, &domain.Book{
		Title:     req.Title,
		Published: req.Published,
		Genres:    req.Genres,
		AuthorID:  author.ID,
	})
	if err != nil {
		return nil, relabel(err, msgSaveBookFailed, map[string]string{"author_id": "author"})
	}

	view := &dto.Book{Book: book, Author: author}

	s.logger.InfoContext(ctx, "book added",
		slog.String("book_id", book.ID),
		slog.String("author_id", author.ID),
		slog.String("user_id", viewer.ID))

	s.bus.Publish(events.NewBookAddedEvent(view))

	return view, nil
}

// getOrCreateAuthor coalesces concurrent creations of the same name. The
// shared flight is detached from any one caller's cancellation; each caller
// stops waiting when its own ctx ends.
func (s *CatalogService) getOrCreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := s.authors.DoChan(name, func() (any, error) {
		author, created, err := s.store.GetOrCreateAuthor(flightCtx, name)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.InfoContext(flightCtx, "author created",
				slog.String("author_id", author.ID),
				slog.String("name", author.Name))
		}
		return author, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	// Callers sharing a flight share the pointer; hand each its own copy.
	author := *res.Val.(*domain.Author)
	return &author, nil
}

// EditAuthor sets the birth year of the named author. An unknown name is
// not an error: the result is nil and nothing is written.
func (s *CatalogService) EditAuthor(ctx context.Context, viewer *domain.User, name string, bornYear int) (*domain.Author, error) {
	if viewer == nil {
		return nil, domainerrors.Unauthenticated(msgNotAuthenticated)
	}

	author, err := s.store.FindAuthorByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find author %q: %w", name, err)
	}
	if author == nil {
		return nil, nil
	}

	updated, err := s.store.UpdateAuthorBirthYear(ctx, author.ID, bornYear)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if domainerrors.Is(err, domainerrors.ErrValidation) {
			return nil, relabel(err, msgEditAuthorFailed, map[string]string{"born": "setBornTo"})
		}
		return nil, domainerrors.ValidationFailure(msgEditAuthorFailed, "name").WithCause(err)
	}

	s.logger.InfoContext(ctx, "author edited",
		slog.String("author_id", updated.ID),
		slog.Int("born", bornYear),
		slog.String("user_id", viewer.ID))

	return updated, nil
}
