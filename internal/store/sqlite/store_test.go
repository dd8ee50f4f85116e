package sqlite

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
)

// newTestStore creates a new SQLite store in a temporary directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	s, err := Open(dbPath, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	require.NoError(t, err)
	assert.Equal(t, "wal", journalMode)

	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	require.NoError(t, err)
	assert.Equal(t, 1, fk)
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := Open(dbPath, nil)
	require.NoError(t, err)
	_, err = first.CreateAuthor(t.Context(), "Fyodor Dostoevsky")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	count, err := second.CountAuthors(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteRepository(t *testing.T) {
	storetest.RunAllTests(t, func(t *testing.T) store.Repository {
		return newTestStore(t)
	})
}

func TestCreateBook_DuplicateGenresStoredOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	author, err := s.CreateAuthor(ctx, "Sandi Metz")
	require.NoError(t, err)

	_, err = s.CreateBook(ctx, &domain.Book{
		Title:     "Practical Object-Oriented Design",
		Published: 2012,
		Genres:    []string{"refactoring", "refactoring"},
		AuthorID:  author.ID,
	})
	require.NoError(t, err)

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM book_genres`).Scan(&rows))
	assert.Equal(t, 1, rows)

	books, err := s.FindBooks(ctx, domain.BookFilter{Genre: "refactoring"})
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestUpdateAuthorBirthYear_Missing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpdateAuthorBirthYear(t.Context(), "author-missing", 1900)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
