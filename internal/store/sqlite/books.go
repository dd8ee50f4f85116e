package sqlite

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"slices"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
)

// CreateBook stores the book document and its genre rows in one transaction.
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

	doc, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode book: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO books (id, author_id, doc, created_at) VALUES (?, ?, ?, ?)`,
		stored.ID, stored.AuthorID, doc, formatTime(stored.CreatedAt)); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	for _, genre := range stored.Genres {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO book_genres (book_id, genre) VALUES (?, ?)`,
			stored.ID, genre); err != nil {
			return nil, fmt.Errorf("create book genre: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &stored, nil
}

// FindBooks returns matching books in insertion order.
func (s *Store) FindBooks(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error) {
	query := `SELECT doc FROM books ORDER BY rowid`
	var args []any
	if filter.Genre != "" {
		query = `SELECT b.doc FROM books b
			JOIN book_genres g ON g.book_id = b.id
			WHERE g.genre = ?
			ORDER BY b.rowid`
		args = append(args, filter.Genre)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	books, err := scanDocs[domain.Book](rows)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}

	return slices.DeleteFunc(books, func(b *domain.Book) bool { return !filter.Matches(b) }), nil
}

// CountBooks returns the number of books.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}
