package graph

import (
	"context"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/auth"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/service"
)

// Subscriber is the part of the event bus the subscription resolvers need.
type Subscriber interface {
	Subscribe(ctx context.Context, topic events.Topic) (*events.Subscription, error)
}

// Resolver is the root resolver for queries, mutations, and subscriptions.
type Resolver struct {
	catalog *service.CatalogService
	auth    *service.AuthService
	bus     Subscriber
	logger  *slog.Logger
}

// NewResolver creates the root resolver.
func NewResolver(catalog *service.CatalogService, authService *service.AuthService, bus Subscriber, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		catalog: catalog,
		auth:    authService,
		bus:     bus,
		logger:  logger,
	}
}

// fail converts err into the error the client sees. Domain errors pass
// through with their extensions; anything else is logged and masked.
//
// The engine reads extensions by asserting the concrete error type, so
// the result must be the *domainerrors.Error itself and not a wrapper.
func (r *Resolver) fail(ctx context.Context, operation string, err error) error {
	masked := domainerrors.Mask(err)
	if masked.Code == domainerrors.CodeInternal {
		cause := err
		if c := masked.Cause(); c != nil {
			cause = c
		}
		logger.FromContext(ctx, r.logger).ErrorContext(ctx, "operation failed",
			slog.String("operation", operation),
			slog.String("error", cause.Error()))
	}
	return masked
}

// Queries

// BookCount resolves Query.bookCount.
func (r *Resolver) BookCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.BookCount(ctx)
	if err != nil {
		return 0, r.fail(ctx, "bookCount", err)
	}
	return int32(n), nil
}

// AuthorCount resolves Query.authorCount.
func (r *Resolver) AuthorCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.AuthorCount(ctx)
	if err != nil {
		return 0, r.fail(ctx, "authorCount", err)
	}
	return int32(n), nil
}

type allBooksArgs struct {
	Author *string
	Genre  *string
}

// AllBooks resolves Query.allBooks.
func (r *Resolver) AllBooks(ctx context.Context, args allBooksArgs) ([]*BookResolver, error) {
	books, err := r.catalog.AllBooks(ctx, service.AllBooksFilter{
		Author: args.Author,
		Genre:  args.Genre,
	})
	if err != nil {
		return nil, r.fail(ctx, "allBooks", err)
	}
	return newBookResolvers(books), nil
}

// AllAuthors resolves Query.allAuthors.
func (r *Resolver) AllAuthors(ctx context.Context) ([]*AuthorResolver, error) {
	authors, err := r.catalog.AllAuthors(ctx)
	if err != nil {
		return nil, r.fail(ctx, "allAuthors", err)
	}

	out := make([]*AuthorResolver, len(authors))
	for i, a := range authors {
		count := int32(a.BookCount)
		out[i] = &AuthorResolver{author: &a.Author, bookCount: &count}
	}
	return out, nil
}

// Me resolves Query.me.
func (r *Resolver) Me(ctx context.Context) *UserResolver {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil
	}
	return &UserResolver{user: user}
}

// Mutations

type addBookArgs struct {
	Title     string
	Author    string
	Published int32
	Genres    []string
}

// AddBook resolves Mutation.addBook.
func (r *Resolver) AddBook(ctx context.Context, args addBookArgs) (*BookResolver, error) {
	book, err := r.catalog.AddBook(ctx, auth.UserFromContext(ctx), service.AddBookRequest{
		Title:     args.Title,
		Author:    args.Author,
		Published: int(args.Published),
		Genres:    args.Genres,
	})
	if err != nil {
		return nil, r.fail(ctx, "addBook", err)
	}
	return &BookResolver{book: book}, nil
}

type editAuthorArgs struct {
	Name      string
	SetBornTo int32
}

// EditAuthor resolves Mutation.editAuthor.
func (r *Resolver) EditAuthor(ctx context.Context, args editAuthorArgs) (*AuthorResolver, error) {
	author, err := r.catalog.EditAuthor(ctx, auth.UserFromContext(ctx), args.Name, int(args.SetBornTo))
	if err != nil {
		return nil, r.fail(ctx, "editAuthor", err)
	}
	if author == nil {
		return nil, nil
	}
	return &AuthorResolver{author: author}, nil
}

type createUserArgs struct {
	Username      string
	FavoriteGenre string
}

// CreateUser resolves Mutation.createUser.
func (r *Resolver) CreateUser(ctx context.Context, args createUserArgs) (*UserResolver, error) {
	user, err := r.auth.CreateUser(ctx, args.Username, args.FavoriteGenre)
	if err != nil {
		return nil, r.fail(ctx, "createUser", err)
	}
	return &UserResolver{user: user}, nil
}

type loginArgs struct {
	Username string
	Password string
}

// Login resolves Mutation.login.
func (r *Resolver) Login(ctx context.Context, args loginArgs) (*TokenResolver, error) {
	token, err := r.auth.Login(ctx, args.Username, args.Password)
	if err != nil {
		return nil, r.fail(ctx, "login", err)
	}
	return &TokenResolver{value: token}, nil
}
