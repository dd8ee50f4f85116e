// Package domain contains the catalog entities: authors, books, and users.
package domain

// Author is a person credited on one or more books.
// Names are unique across the catalog; the store enforces it.
type Author struct {
	Record
	Name string `json:"name" validate:"required,max=200"`
	Born *int   `json:"born,omitempty"`
}

// AuthorWithCount is the read-time projection returned by allAuthors.
// BookCount is never persisted.
type AuthorWithCount struct {
	Author
	BookCount int `json:"book_count"`
}

// SetBorn overwrites the birth year.
func (a *Author) SetBorn(year int) {
	a.Born = &year
	a.Touch()
}
