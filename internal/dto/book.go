// Package dto provides the client-facing views of catalog documents.
//
// Documents store references by id; views carry the referenced documents
// resolved so a response or a subscription event renders without further
// lookups.
package dto

import "github.com/listenupapp/catalog-server/internal/domain"

// Book is a book with its author reference resolved.
// Author is nil when the reference could not be resolved.
type Book struct {
	*domain.Book

	Author *domain.Author `json:"author"`
}

// AuthorName returns the resolved author's name, or "".
func (b *Book) AuthorName() string {
	if b.Author == nil {
		return ""
	}
	return b.Author.Name
}
