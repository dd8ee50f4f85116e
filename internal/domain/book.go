package domain

import "slices"

// Book is a catalog entry. Books are immutable once created.
type Book struct {
	Record
	Title     string   `json:"title" validate:"required,max=500"`
	Published int      `json:"published"`
	Genres    []string `json:"genres" validate:"required,min=1,dive,required"`
	AuthorID  string   `json:"author_id" validate:"required"`
}

// HasGenre reports whether genre is one of the book's genres.
// Matching is exact and case-sensitive.
func (b *Book) HasGenre(genre string) bool {
	return slices.Contains(b.Genres, genre)
}

// BookFilter narrows FindBooks. The zero value matches every book.
type BookFilter struct {
	Genre string
}

// Matches reports whether b passes the filter.
func (f BookFilter) Matches(b *Book) bool {
	return f.Genre == "" || b.HasGenre(f.Genre)
}
