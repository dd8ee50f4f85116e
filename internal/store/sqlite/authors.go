package sqlite

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"strings"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/store"
)

// FindAuthorByName looks an author up by exact name.
func (s *Store) FindAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	return scanDoc[domain.Author](s.db.QueryRowContext(ctx,
		`SELECT doc FROM authors WHERE name = ?`, name))
}

// FindAuthorByID returns the author or nil.
func (s *Store) FindAuthorByID(ctx context.Context, authorID string) (*domain.Author, error) {
	return scanDoc[domain.Author](s.db.QueryRowContext(ctx,
		`SELECT doc FROM authors WHERE id = ?`, authorID))
}

// FindAuthorsByIDs resolves many author references with a single IN query.
func (s *Store) FindAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error) {
	result := make(map[string]*domain.Author, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, v := range ids {
		args[i] = v
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM authors WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("find authors by ids: %w", err)
	}
	authors, err := scanDocs[domain.Author](rows)
	if err != nil {
		return nil, fmt.Errorf("find authors by ids: %w", err)
	}

	for _, a := range authors {
		result[a.ID] = a
	}
	return result, nil
}

// CreateAuthor inserts an author; the UNIQUE name column rejects duplicates.
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

	doc, err := json.Marshal(author)
	if err != nil {
		return nil, fmt.Errorf("encode author: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO authors (id, name, doc, created_at) VALUES (?, ?, ?, ?)`,
		author.ID, author.Name, doc, formatTime(author.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ValidationFailure(store.ErrAlreadyExists.WithField("name").WithCause(err),
				"author name must be unique", "name")
		}
		return nil, fmt.Errorf("create author: %w", err)
	}

	return author, nil
}

// GetOrCreateAuthor inserts first and re-fetches when the UNIQUE constraint fires.
func (s *Store) GetOrCreateAuthor(ctx context.Context, name string) (*domain.Author, bool, error) {
	return store.GetOrCreate(ctx,
		func(ctx context.Context) (*domain.Author, error) { return s.CreateAuthor(ctx, name) },
		func(ctx context.Context) (*domain.Author, error) { return s.FindAuthorByName(ctx, name) },
	)
}

// UpdateAuthorBirthYear sets born on an existing author.
func (s *Store) UpdateAuthorBirthYear(ctx context.Context, authorID string, year int) (*domain.Author, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	author, err := scanDoc[domain.Author](tx.QueryRowContext(ctx, `SELECT doc FROM authors WHERE id = ?`, authorID))
	if err != nil {
		return nil, fmt.Errorf("get author %s: %w", authorID, err)
	}
	if author == nil {
		return nil, fmt.Errorf("get author %s: %w", authorID, store.ErrNotFound)
	}

	author.SetBorn(year)

	doc, err := json.Marshal(author)
	if err != nil {
		return nil, fmt.Errorf("encode author: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE authors SET doc = ? WHERE id = ?`, doc, authorID); err != nil {
		return nil, fmt.Errorf("update author %s: %w", authorID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return author, nil
}

// ListAuthors returns every author in insertion order.
func (s *Store) ListAuthors(ctx context.Context) ([]*domain.Author, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM authors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return scanDocs[domain.Author](rows)
}

// CountAuthors returns the number of authors.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return n, nil
}
