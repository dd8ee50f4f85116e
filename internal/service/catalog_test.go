package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/store"
)

func ptr[T any](v T) *T { return &v }

func addBook(t *testing.T, env *testEnv, viewer *domain.User, title, author string, genres ...string) *dto.Book {
	t.Helper()
	b, err := env.catalog.AddBook(t.Context(), viewer, AddBookRequest{
		Title:     title,
		Author:    author,
		Published: 2008,
		Genres:    genres,
	})
	require.NoError(t, err)
	return b
}

func TestAddBook_CreatesAuthorOnce(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)

	first := addBook(t, env, viewer, "Clean Code", "Robert Martin", "refactoring")
	second := addBook(t, env, viewer, "Agile software development", "Robert Martin", "agile", "patterns")

	require.NotNil(t, first.Author)
	assert.Equal(t, "Robert Martin", first.Author.Name)
	assert.Equal(t, first.Author.ID, second.Author.ID)

	authors, err := env.catalog.AuthorCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, authors)

	books, err := env.catalog.BookCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, books)
}

func TestAddBook_Unauthenticated(t *testing.T) {
	env := setupServiceTest(t)

	_, err := env.catalog.AddBook(t.Context(), nil, AddBookRequest{
		Title: "Dune", Author: "Frank Herbert", Published: 1965, Genres: []string{"scifi"},
	})
	require.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	assert.Equal(t, "not authenticated", err.Error())

	books, err := env.catalog.BookCount(t.Context())
	require.NoError(t, err)
	assert.Zero(t, books)
	authors, err := env.catalog.AuthorCount(t.Context())
	require.NoError(t, err)
	assert.Zero(t, authors)
}

func TestAddBook_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		req     AddBookRequest
		message string
		arg     string
	}{
		{
			name:    "empty author",
			req:     AddBookRequest{Title: "Dune", Author: "", Published: 1965, Genres: []string{"scifi"}},
			message: "Adding new Author failed",
			arg:     "author",
		},
		{
			name:    "empty title",
			req:     AddBookRequest{Title: "", Author: "Frank Herbert", Published: 1965, Genres: []string{"scifi"}},
			message: "Saving book failed",
			arg:     "title",
		},
		{
			name:    "no genres",
			req:     AddBookRequest{Title: "Dune", Author: "Frank Herbert", Published: 1965},
			message: "Saving book failed",
			arg:     "genres",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServiceTest(t)
			viewer := env.viewer(t)

			_, err := env.catalog.AddBook(t.Context(), viewer, tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeBadUserInput, domainErr.Code)
			assert.Equal(t, tt.message, domainErr.Message)
			assert.Contains(t, domainErr.InvalidArgs, tt.arg)

			books, err := env.catalog.BookCount(t.Context())
			require.NoError(t, err)
			assert.Zero(t, books)
		})
	}
}

func TestAddBook_PublishesAfterPersist(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	sub, err := env.bus.Subscribe(ctx, events.TopicBookAdded)
	require.NoError(t, err)

	added := addBook(t, env, viewer, "Dune", "Herbert", "scifi")

	select {
	case ev := <-sub.Events():
		assert.Equal(t, events.TopicBookAdded, ev.Topic)
		assert.Equal(t, "Dune", ev.Book.Title)
		assert.Equal(t, added.ID, ev.Book.ID)
		assert.Equal(t, "Herbert", ev.Book.AuthorName())

		stored, err := env.catalog.AllBooks(t.Context(), AllBooksFilter{})
		require.NoError(t, err)
		require.Len(t, stored, 1)
	case <-time.After(time.Second):
		t.Fatal("no BOOK_ADDED event")
	}

	// Exactly one event per addBook.
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}
}

func TestAddBook_FailureDoesNotPublish(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	sub, err := env.bus.Subscribe(ctx, events.TopicBookAdded)
	require.NoError(t, err)

	_, err = env.catalog.AddBook(t.Context(), viewer, AddBookRequest{Title: "", Author: "Herbert", Genres: []string{"scifi"}})
	require.Error(t, err)

	assert.Empty(t, sub.Events())
}

// Racing addBook calls for a brand-new author must leave exactly one author.
func TestAddBook_ConcurrentNewAuthor(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)
	const callers = 12

	p := pool.NewWithResults[string]().WithErrors().WithMaxGoroutines(callers)
	var start sync.WaitGroup
	start.Add(1)
	for i := range callers {
		p.Go(func() (string, error) {
			start.Wait()
			b, err := env.catalog.AddBook(t.Context(), viewer, AddBookRequest{
				Title:     "Volume " + string(rune('A'+i)),
				Author:    "Brand New Author",
				Published: 2020,
				Genres:    []string{"anthology"},
			})
			if err != nil {
				return "", err
			}
			return b.AuthorID, nil
		})
	}
	start.Done()

	authorIDs, err := p.Wait()
	require.NoError(t, err)
	for _, id := range authorIDs {
		assert.Equal(t, authorIDs[0], id)
	}

	authors, err := env.catalog.AllAuthors(t.Context())
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, callers, authors[0].BookCount)
}

// gatedRepo holds GetOrCreateAuthor until release is closed.
type gatedRepo struct {
	store.Repository
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) GetOrCreateAuthor(ctx context.Context, name string) (*domain.Author, bool, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Repository.GetOrCreateAuthor(ctx, name)
}

// A caller that goes away must not fail others waiting on the same new author.
func TestAddBook_CancelledCallerDoesNotFailSharedAuthor(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)

	repo := &gatedRepo{Repository: env.store, entered: make(chan struct{}, 2), release: make(chan struct{})}
	catalog := NewCatalogService(repo, env.bus, nil)

	req := func(title string) AddBookRequest {
		return AddBookRequest{Title: title, Author: "Frank Herbert", Published: 1965, Genres: []string{"scifi"}}
	}

	leaderCtx, cancel := context.WithCancel(t.Context())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := catalog.AddBook(leaderCtx, viewer, req("Dune"))
		leaderErr <- err
	}()
	<-repo.entered

	type result struct {
		book *dto.Book
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		b, err := catalog.AddBook(context.Background(), viewer, req("Dune Messiah"))
		follower <- result{b, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(repo.release)

	got := <-follower
	require.NoError(t, got.err)
	require.NotNil(t, got.book.Author)
	assert.Equal(t, "Frank Herbert", got.book.Author.Name)

	authors, err := env.catalog.AuthorCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, authors)

	books, err := env.catalog.AllBooks(t.Context(), AllBooksFilter{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune Messiah", books[0].Title)
}

func TestAllBooks_Filters(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)

	addBook(t, env, viewer, "Dune", "Frank Herbert", "scifi", "classic")
	addBook(t, env, viewer, "Clean Code", "Robert Martin", "refactoring")
	addBook(t, env, viewer, "Dune Messiah", "Frank Herbert", "scifi")
	addBook(t, env, viewer, "Neuromancer", "William Gibson", "SciFi")

	titles := func(books []*dto.Book) []string {
		out := make([]string, 0, len(books))
		for _, b := range books {
			out = append(out, b.Title)
		}
		return out
	}

	tests := []struct {
		name   string
		filter AllBooksFilter
		want   []string
	}{
		{"no filter", AllBooksFilter{}, []string{"Dune", "Clean Code", "Dune Messiah", "Neuromancer"}},
		{"genre is exact and case-sensitive", AllBooksFilter{Genre: ptr("scifi")}, []string{"Dune", "Dune Messiah"}},
		{"unknown genre", AllBooksFilter{Genre: ptr("romance")}, []string{}},
		{"empty genre does not filter", AllBooksFilter{Genre: ptr("")}, []string{"Dune", "Clean Code", "Dune Messiah", "Neuromancer"}},
		{"empty author does not filter", AllBooksFilter{Author: ptr(""), Genre: ptr("scifi")}, []string{"Dune", "Dune Messiah"}},
		{"author", AllBooksFilter{Author: ptr("Robert Martin")}, []string{"Clean Code"}},
		{"author and genre", AllBooksFilter{Author: ptr("Frank Herbert"), Genre: ptr("classic")}, []string{"Dune"}},
		{"unknown author", AllBooksFilter{Author: ptr("Nobody")}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := env.catalog.AllBooks(t.Context(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(books))
		})
	}
}

// The favorite-genre recommendation view is allBooks filtered by me.favoriteGenre.
func TestAllBooks_RecommendationsForViewer(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)

	addBook(t, env, viewer, "Refactoring", "Martin Fowler", "refactoring", "patterns")
	addBook(t, env, viewer, "Crime and punishment", "Fyodor Dostoevsky", "classic", "crime")

	books, err := env.catalog.AllBooks(t.Context(), AllBooksFilter{Genre: &viewer.FavoriteGenre})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Refactoring", books[0].Title)
}

// failingRepo lets individual Repository calls fail.
type failingRepo struct {
	store.Repository
	findBooksErr   error
	findAuthorsErr error
	updateErr      error
}

func (f *failingRepo) FindBooks(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error) {
	if f.findBooksErr != nil {
		return nil, f.findBooksErr
	}
	return f.Repository.FindBooks(ctx, filter)
}

func (f *failingRepo) FindAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error) {
	if f.findAuthorsErr != nil {
		return nil, f.findAuthorsErr
	}
	return f.Repository.FindAuthorsByIDs(ctx, ids)
}

func (f *failingRepo) UpdateAuthorBirthYear(ctx context.Context, authorID string, year int) (*domain.Author, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.Repository.UpdateAuthorBirthYear(ctx, authorID, year)
}

func TestAllBooks_InternalFailureIsMasked(t *testing.T) {
	env := setupServiceTest(t)
	repo := &failingRepo{Repository: env.store, findBooksErr: errors.New("value log corrupted at offset 42")}
	catalog := NewCatalogService(repo, env.bus, nil)

	_, err := catalog.AllBooks(t.Context(), AllBooksFilter{})
	require.Error(t, err)
	assert.Equal(t, "Internal server error", err.Error())
	assert.True(t, domainerrors.IsInternal(err))
}

func TestAllBooks_AuthorLookupFailureIsInternal(t *testing.T) {
	env := setupServiceTest(t)
	addBook(t, env, env.viewer(t), "Dune", "Frank Herbert", "scifi")

	repo := &failingRepo{Repository: env.store, findAuthorsErr: errors.New("timeout")}
	catalog := NewCatalogService(repo, env.bus, nil)

	for name, filter := range map[string]AllBooksFilter{
		"no filter": {},
		"author":    {Author: ptr("Frank Herbert")},
	} {
		t.Run(name, func(t *testing.T) {
			books, err := catalog.AllBooks(t.Context(), filter)
			require.Error(t, err)
			assert.Nil(t, books)
			assert.True(t, domainerrors.IsInternal(err))
			assert.Equal(t, "Internal server error", err.Error())
		})
	}
}

func TestAllBooks_DanglingAuthorReference(t *testing.T) {
	env := setupServiceTest(t)

	_, err := env.store.CreateBook(t.Context(), &domain.Book{
		Title: "Orphan", Published: 1999, Genres: []string{"mystery"}, AuthorID: "author-deleted",
	})
	require.NoError(t, err)

	books, err := env.catalog.AllBooks(t.Context(), AllBooksFilter{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Nil(t, books[0].Author)
}

func TestAllAuthors_FreshCounts(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)

	addBook(t, env, viewer, "Clean Code", "Robert Martin", "refactoring")
	addBook(t, env, viewer, "Refactoring", "Martin Fowler", "refactoring")

	authors, err := env.catalog.AllAuthors(t.Context())
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "Robert Martin", authors[0].Name)
	assert.Equal(t, 1, authors[0].BookCount)

	addBook(t, env, viewer, "Agile software development", "Robert Martin", "agile")

	authors, err = env.catalog.AllAuthors(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, authors[0].BookCount)
	assert.Equal(t, 1, authors[1].BookCount)
}

func TestEditAuthor(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)
	addBook(t, env, viewer, "Crime and punishment", "Fyodor Dostoevsky", "classic")

	t.Run("sets born and keeps name", func(t *testing.T) {
		author, err := env.catalog.EditAuthor(t.Context(), viewer, "Fyodor Dostoevsky", 1821)
		require.NoError(t, err)
		require.NotNil(t, author)
		assert.Equal(t, "Fyodor Dostoevsky", author.Name)
		require.NotNil(t, author.Born)
		assert.Equal(t, 1821, *author.Born)

		stored, err := env.store.FindAuthorByName(t.Context(), "Fyodor Dostoevsky")
		require.NoError(t, err)
		assert.Equal(t, 1821, *stored.Born)
	})

	t.Run("unknown name is a no-op", func(t *testing.T) {
		author, err := env.catalog.EditAuthor(t.Context(), viewer, "Nobody", 1900)
		require.NoError(t, err)
		assert.Nil(t, author)

		count, err := env.catalog.AuthorCount(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := env.catalog.EditAuthor(t.Context(), nil, "Fyodor Dostoevsky", 1900)
		require.ErrorIs(t, err, domainerrors.ErrUnauthenticated)

		stored, err := env.store.FindAuthorByName(t.Context(), "Fyodor Dostoevsky")
		require.NoError(t, err)
		assert.Equal(t, 1821, *stored.Born)
	})
}

func TestEditAuthor_PersistenceFailure(t *testing.T) {
	env := setupServiceTest(t)
	viewer := env.viewer(t)
	addBook(t, env, viewer, "Dune", "Frank Herbert", "scifi")

	repo := &failingRepo{Repository: env.store, updateErr: errors.New("disk full")}
	catalog := NewCatalogService(repo, env.bus, nil)

	_, err := catalog.EditAuthor(t.Context(), viewer, "Frank Herbert", 1920)
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeBadUserInput, domainErr.Code)
	assert.Equal(t, "Modifying author failed", domainErr.Message)
	assert.Equal(t, []string{"name"}, domainErr.InvalidArgs)
}
