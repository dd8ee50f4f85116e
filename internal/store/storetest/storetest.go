// Package storetest is the conformance suite every Repository backend must pass.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Factory returns a fresh, empty repository. The factory owns cleanup.
type Factory func(t *testing.T) store.Repository

var ignoreTimestamps = cmpopts.IgnoreFields(domain.Record{}, "CreatedAt", "UpdatedAt")

// RunAllTests runs the full suite, each case against its own repository.
func RunAllTests(t *testing.T, newRepo Factory) {
	t.Run("Ping", func(t *testing.T) { PingTest(t, newRepo(t)) })

	// Authors.
	t.Run("CreateAndFindAuthor", func(t *testing.T) { CreateAndFindAuthorTest(t, newRepo(t)) })
	t.Run("AuthorNameUnique", func(t *testing.T) { AuthorNameUniqueTest(t, newRepo(t)) })
	t.Run("AuthorValidation", func(t *testing.T) { AuthorValidationTest(t, newRepo(t)) })
	t.Run("GetOrCreateAuthor", func(t *testing.T) { GetOrCreateAuthorTest(t, newRepo(t)) })
	t.Run("GetOrCreateAuthorConcurrent", func(t *testing.T) { GetOrCreateAuthorConcurrentTest(t, newRepo(t)) })
	t.Run("UpdateAuthorBirthYear", func(t *testing.T) { UpdateAuthorBirthYearTest(t, newRepo(t)) })
	t.Run("FindAuthorsByIDs", func(t *testing.T) { FindAuthorsByIDsTest(t, newRepo(t)) })
	t.Run("ReadsReturnNilWhenMissing", func(t *testing.T) { ReadsReturnNilWhenMissingTest(t, newRepo(t)) })

	// Books.
	t.Run("CreateAndCountBooks", func(t *testing.T) { CreateAndCountBooksTest(t, newRepo(t)) })
	t.Run("FindBooksByGenre", func(t *testing.T) { FindBooksByGenreTest(t, newRepo(t)) })
	t.Run("BookValidation", func(t *testing.T) { BookValidationTest(t, newRepo(t)) })

	// Users.
	t.Run("CreateAndFindUser", func(t *testing.T) { CreateAndFindUserTest(t, newRepo(t)) })
	t.Run("UsernameUnique", func(t *testing.T) { UsernameUniqueTest(t, newRepo(t)) })
}

func PingTest(t *testing.T, repo store.Repository) {
	require.NoError(t, repo.Ping(context.Background()))
}

func CreateAndFindAuthorTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	created, err := repo.CreateAuthor(ctx, "Robert Martin")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Robert Martin", created.Name)
	assert.Nil(t, created.Born)

	byName, err := repo.FindAuthorByName(ctx, "Robert Martin")
	require.NoError(t, err)
	require.NotNil(t, byName)
	if diff := cmp.Diff(created, byName, ignoreTimestamps); diff != "" {
		t.Errorf("FindAuthorByName mismatch (-want +got):\n%s", diff)
	}

	byID, err := repo.FindAuthorByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, created.ID, byID.ID)

	// Exact, case-sensitive match.
	other, err := repo.FindAuthorByName(ctx, "robert martin")
	require.NoError(t, err)
	assert.Nil(t, other)

	count, err := repo.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func AuthorNameUniqueTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.CreateAuthor(ctx, "Martin Fowler")
	require.NoError(t, err)

	_, err = repo.CreateAuthor(ctx, "Martin Fowler")
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, []string{"name"}, domainErr.InvalidArgs)

	count, err := repo.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func AuthorValidationTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.CreateAuthor(ctx, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	count, err := repo.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func GetOrCreateAuthorTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	first, created, err := repo.GetOrCreateAuthor(ctx, "Joshua Kerievsky")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.GetOrCreateAuthor(ctx, "Joshua Kerievsky")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

// GetOrCreateAuthorConcurrentTest asserts that racing callers for a brand-new
// name end up with exactly one stored author and agree on its id.
func GetOrCreateAuthorConcurrentTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	const callers = 16

	p := pool.NewWithResults[string]().WithErrors().WithMaxGoroutines(callers)
	var start sync.WaitGroup
	start.Add(1)
	for range callers {
		p.Go(func() (string, error) {
			start.Wait()
			author, _, err := repo.GetOrCreateAuthor(ctx, "Sandi Metz")
			if err != nil {
				return "", err
			}
			return author.ID, nil
		})
	}
	start.Done()

	ids, err := p.Wait()
	require.NoError(t, err)
	require.Len(t, ids, callers)
	for _, got := range ids {
		assert.Equal(t, ids[0], got)
	}

	count, err := repo.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func UpdateAuthorBirthYearTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	author, err := repo.CreateAuthor(ctx, "Reijo Mäki")
	require.NoError(t, err)

	updated, err := repo.UpdateAuthorBirthYear(ctx, author.ID, 1958)
	require.NoError(t, err)
	require.NotNil(t, updated.Born)
	assert.Equal(t, 1958, *updated.Born)
	assert.Equal(t, "Reijo Mäki", updated.Name)

	reloaded, err := repo.FindAuthorByName(ctx, "Reijo Mäki")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.NotNil(t, reloaded.Born)
	assert.Equal(t, 1958, *reloaded.Born)
	assert.Equal(t, author.ID, reloaded.ID)
}

func FindAuthorsByIDsTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	a, err := repo.CreateAuthor(ctx, "Fyodor Dostoevsky")
	require.NoError(t, err)
	b, err := repo.CreateAuthor(ctx, "Martin Fowler")
	require.NoError(t, err)

	found, err := repo.FindAuthorsByIDs(ctx, []string{a.ID, b.ID, a.ID, "author-missing"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Fyodor Dostoevsky", found[a.ID].Name)
	assert.Equal(t, "Martin Fowler", found[b.ID].Name)

	empty, err := repo.FindAuthorsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func ReadsReturnNilWhenMissingTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	author, err := repo.FindAuthorByName(ctx, "Nobody")
	require.NoError(t, err)
	assert.Nil(t, author)

	author, err = repo.FindAuthorByID(ctx, "author-missing")
	require.NoError(t, err)
	assert.Nil(t, author)

	user, err := repo.FindUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = repo.FindUserByID(ctx, "user-missing")
	require.NoError(t, err)
	assert.Nil(t, user)

	books, err := repo.FindBooks(ctx, domain.BookFilter{Genre: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)

	authors, err := repo.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Empty(t, authors)
}

func CreateAndCountBooksTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	author, err := repo.CreateAuthor(ctx, "Robert Martin")
	require.NoError(t, err)

	titles := []string{"Clean Code", "Agile software development"}
	for _, title := range titles {
		book, err := repo.CreateBook(ctx, &domain.Book{
			Title:     title,
			Published: 2008,
			Genres:    []string{"refactoring"},
			AuthorID:  author.ID,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, book.ID)
		assert.False(t, book.CreatedAt.IsZero())
	}

	count, err := repo.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	all, err := repo.FindBooks(ctx, domain.BookFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, titles[0], all[0].Title, "books come back in creation order")
	assert.Equal(t, titles[1], all[1].Title)
	assert.Equal(t, author.ID, all[0].AuthorID)
	assert.Equal(t, []string{"refactoring"}, all[0].Genres)
}

func FindBooksByGenreTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	author, err := repo.CreateAuthor(ctx, "Frank Herbert")
	require.NoError(t, err)

	fixtures := []struct {
		title  string
		genres []string
	}{
		{"Dune", []string{"scifi", "classic"}},
		{"Dune Messiah", []string{"scifi"}},
		{"The Green Brain", []string{"SciFi"}},
		{"Soul Catcher", []string{"scifi-adjacent"}},
	}
	for _, f := range fixtures {
		_, err := repo.CreateBook(ctx, &domain.Book{Title: f.title, Published: 1965, Genres: f.genres, AuthorID: author.ID})
		require.NoError(t, err)
	}

	books, err := repo.FindBooks(ctx, domain.BookFilter{Genre: "scifi"})
	require.NoError(t, err)

	titles := make([]string, 0, len(books))
	for _, b := range books {
		titles = append(titles, b.Title)
	}
	assert.Equal(t, []string{"Dune", "Dune Messiah"}, titles)

	classic, err := repo.FindBooks(ctx, domain.BookFilter{Genre: "classic"})
	require.NoError(t, err)
	require.Len(t, classic, 1)
	assert.Equal(t, "Dune", classic[0].Title)

	none, err := repo.FindBooks(ctx, domain.BookFilter{Genre: "romance"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func BookValidationTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	tests := []struct {
		name string
		book domain.Book
		arg  string
	}{
		{"missing title", domain.Book{Published: 1965, Genres: []string{"scifi"}, AuthorID: "author-1"}, "title"},
		{"no genres", domain.Book{Title: "Dune", Published: 1965, AuthorID: "author-1"}, "genres"},
		{"missing author", domain.Book{Title: "Dune", Published: 1965, Genres: []string{"scifi"}}, "author_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateBook(ctx, &tt.book)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeBadUserInput, domainErr.Code)
			assert.Contains(t, domainErr.InvalidArgs, tt.arg)
		})
	}

	count, err := repo.CountBooks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func CreateAndFindUserTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, &domain.User{Username: "mluukkai", FavoriteGenre: "refactoring"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	byName, err := repo.FindUserByUsername(ctx, "mluukkai")
	require.NoError(t, err)
	require.NotNil(t, byName)
	if diff := cmp.Diff(created, byName, ignoreTimestamps); diff != "" {
		t.Errorf("FindUserByUsername mismatch (-want +got):\n%s", diff)
	}

	byID, err := repo.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "refactoring", byID.FavoriteGenre)
}

func UsernameUniqueTest(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, &domain.User{Username: "mluukkai", FavoriteGenre: "refactoring"})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, &domain.User{Username: "mluukkai", FavoriteGenre: "crime"})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeBadUserInput, domainErr.Code)
	assert.Equal(t, []string{"username"}, domainErr.InvalidArgs)
}
