package graph

import (
	"github.com/graph-gophers/graphql-go"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
)

// BookResolver resolves the Book type.
type BookResolver struct {
	book *dto.Book
}

func newBookResolvers(books []*dto.Book) []*BookResolver {
	out := make([]*BookResolver, len(books))
	for i, b := range books {
		out[i] = &BookResolver{book: b}
	}
	return out
}

func (b *BookResolver) ID() graphql.ID   { return graphql.ID(b.book.ID) }
func (b *BookResolver) Title() string    { return b.book.Title }
func (b *BookResolver) Published() int32 { return int32(b.book.Published) }
func (b *BookResolver) Genres() []string { return b.book.Genres }

// Author is null when the reference could not be resolved. The book
// count is not computed on this path.
func (b *BookResolver) Author() *AuthorResolver {
	if b.book.Author == nil {
		return nil
	}
	return &AuthorResolver{author: b.book.Author}
}

// AuthorResolver resolves the Author type.
type AuthorResolver struct {
	author    *domain.Author
	bookCount *int32
}

func (a *AuthorResolver) ID() graphql.ID { return graphql.ID(a.author.ID) }
func (a *AuthorResolver) Name() string   { return a.author.Name }

func (a *AuthorResolver) Born() *int32 {
	if a.author.Born == nil {
		return nil
	}
	born := int32(*a.author.Born)
	return &born
}

func (a *AuthorResolver) BookCount() *int32 { return a.bookCount }

// UserResolver resolves the User type.
type UserResolver struct {
	user *domain.User
}

func (u *UserResolver) ID() graphql.ID        { return graphql.ID(u.user.ID) }
func (u *UserResolver) Username() string      { return u.user.Username }
func (u *UserResolver) FavoriteGenre() string { return u.user.FavoriteGenre }

// TokenResolver resolves the Token type.
type TokenResolver struct {
	value string
}

func (t *TokenResolver) Value() string { return t.value }
