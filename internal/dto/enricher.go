package dto

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// AuthorStore is the lookup the Enricher needs.
type AuthorStore interface {
	FindAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error)
}

// Enricher resolves author references for books.
//
// Design:
//   - Batch fetching: one lookup per call, keyed by the distinct author ids
//   - Dangling references: an id the store does not know leaves Author nil
//   - Lookup failures are returned, never rendered as missing authors
type Enricher struct {
	store  AuthorStore
	logger *slog.Logger
}

// NewEnricher creates a new enricher.
func NewEnricher(store AuthorStore, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Enricher{store: store, logger: logger}
}

// EnrichBook resolves the author of a single book.
func (e *Enricher) EnrichBook(ctx context.Context, book *domain.Book) (*Book, error) {
	out, err := e.EnrichBooks(ctx, []*domain.Book{book})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EnrichBooks resolves the authors of books with a single batched lookup,
// keeping the order of books.
func (e *Enricher) EnrichBooks(ctx context.Context, books []*domain.Book) ([]*Book, error) {
	seen := make(map[string]struct{}, len(books))
	ids := make([]string, 0, len(books))
	for _, b := range books {
		if _, ok := seen[b.AuthorID]; ok || b.AuthorID == "" {
			continue
		}
		seen[b.AuthorID] = struct{}{}
		ids = append(ids, b.AuthorID)
	}

	var authors map[string]*domain.Author
	if len(ids) > 0 {
		var err error
		authors, err = e.store.FindAuthorsByIDs(ctx, ids)
		if err != nil {
			e.logger.ErrorContext(ctx, "author lookup failed",
				slog.Int("authors", len(ids)),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("resolve %d authors: %w", len(ids), err)
		}
	}

	out := make([]*Book, len(books))
	for i, b := range books {
		out[i] = &Book{Book: b, Author: authors[b.AuthorID]}
	}
	return out, nil
}
