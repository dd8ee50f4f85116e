// Package events is the in-process change notification bus. Subscribers
// receive events published after they registered; nothing is replayed.
package events

import (
	"time"

	"github.com/listenupapp/catalog-server/internal/dto"
)

// Topic names a stream of events.
type Topic string

// TopicBookAdded carries a Book every time addBook persists one.
const TopicBookAdded Topic = "BOOK_ADDED"

// Event is a single published notification. Payloads are resolved views,
// so a subscriber renders them without going back to the store.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Book      *dto.Book `json:"book,omitempty"`
	Topic     Topic     `json:"topic"`
}

// NewBookAddedEvent creates a book added event.
func NewBookAddedEvent(book *dto.Book) Event {
	return Event{
		Topic:     TopicBookAdded,
		Timestamp: time.Now(),
		Book:      book,
	}
}
