package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// Key prefixes for each collection.
const (
	authorPrefix = "author:"
	bookPrefix   = "book:"
	userPrefix   = "user:"

	indexAuthorName   = "name"
	indexBookGenre    = "genre"
	indexUserUsername = "username"
)

// Store is the Badger-backed Repository.
type Store struct {
	db        *badger.DB
	logger    *slog.Logger
	validator *validation.Validator

	Authors *Entity[domain.Author]
	Books   *Entity[domain.Book]
	Users   *Entity[domain.User]
}

var _ Repository = (*Store)(nil)

// New opens (or creates) a Badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:        db,
		logger:    logger,
		validator: validation.New(),
	}
	store.initEntities()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Ping verifies the database is open and readable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

func (s *Store) initEntities() {
	s.Authors = NewEntity[domain.Author](s, authorPrefix).
		WithUniqueIndex(indexAuthorName, "name", func(a *domain.Author) []string {
			return []string{a.Name}
		})

	s.Books = NewEntity[domain.Book](s, bookPrefix).
		WithIndex(indexBookGenre, func(b *domain.Book) []string {
			return uniqueStrings(b.Genres)
		})

	s.Users = NewEntity[domain.User](s, userPrefix).
		WithUniqueIndex(indexUserUsername, "username", func(u *domain.User) []string {
			return []string{u.Username}
		})
}

// collect drains a List iterator into a slice.
func collect[T any](seq iter.Seq2[*T, error]) ([]*T, error) {
	items := make([]*T, 0)
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// orNil turns ErrNotFound into a nil result so reads never fail on absence.
func orNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
