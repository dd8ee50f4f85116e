package graph

import (
	"context"

	"github.com/listenupapp/catalog-server/internal/events"
)

// BookAdded resolves Subscription.bookAdded. The stream ends when ctx is
// cancelled or the bus drops the subscriber; either way the bus forgets it.
func (r *Resolver) BookAdded(ctx context.Context) (<-chan *BookResolver, error) {
	sub, err := r.bus.Subscribe(ctx, events.TopicBookAdded)
	if err != nil {
		return nil, r.fail(ctx, "bookAdded", err)
	}

	out := make(chan *BookResolver)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				select {
				case out <- &BookResolver{book: ev.Book}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
