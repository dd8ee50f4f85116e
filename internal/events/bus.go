package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/catalog-server/internal/id"
)

// ErrClosed is returned by Subscribe once the bus has been shut down.
var ErrClosed = errors.New("event bus is shut down")

// Options configures a Bus.
type Options struct {
	BufferSize int
	Policy     OverflowPolicy
}

// Subscription is a registered listener on one topic.
// Events is closed when the subscription ends, for whatever reason.
type Subscription struct {
	ConnectedAt time.Time
	ID          string
	Topic       Topic

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// Events returns the receive side of the subscriber's buffer.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Dropped returns how many events this subscriber lost to overflow.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// offer hands ev to the subscriber without blocking. It reports whether the
// event was buffered and whether the subscriber overflowed.
func (s *Subscription) offer(ev Event, policy OverflowPolicy) (delivered, overflow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, false
	}

	select {
	case s.events <- ev:
		return true, false
	default:
	}

	s.dropped++
	if policy == CloseSlow {
		return false, true
	}

	// Drop the oldest buffered event. The consumer may have drained it
	// already, in which case the send below simply has room.
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- ev:
		return true, true
	default:
		return false, true
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.events)
}

// Bus fans published events out to the subscribers of each topic.
type Bus struct {
	subscribers map[Topic]map[string]*Subscription
	logger      *slog.Logger
	policy      OverflowPolicy
	bufferSize  int
	wg          sync.WaitGroup
	mu          sync.RWMutex
	shutdown    bool
}

// NewBus creates a Bus. Zero options fall back to DefaultBufferSize and DropOldest.
func NewBus(opts Options, logger *slog.Logger) *Bus {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Policy == "" {
		opts.Policy = DropOldest
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		subscribers: make(map[Topic]map[string]*Subscription),
		logger:      logger,
		policy:      opts.Policy,
		bufferSize:  opts.BufferSize,
	}
}

// Policy returns the overflow policy in effect.
func (b *Bus) Policy() OverflowPolicy {
	return b.policy
}

// Subscribe registers a subscriber on topic. The subscription is removed
// and its channel closed when ctx is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, topic Topic) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subID, err := id.Generate(id.PrefixSubscription)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:          subID,
		Topic:       topic,
		ConnectedAt: time.Now(),
		events:      make(chan Event, b.bufferSize),
		done:        make(chan struct{}),
	}

	b.mu.Lock()
	if b.shutdown {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[string]*Subscription)
	}
	b.subscribers[topic][sub.ID] = sub
	total := b.countLocked()
	b.wg.Add(1)
	b.mu.Unlock()

	subscribersGauge.Inc()

	b.logger.Debug("subscriber registered",
		slog.String("subscription_id", sub.ID),
		slog.String("topic", string(topic)),
		slog.Int("total_subscribers", total))

	go func() {
		defer b.wg.Done()
		select {
		case <-ctx.Done():
			b.Unsubscribe(sub)
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Unsubscribe deregisters sub and closes its channel. Safe to call twice.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	subs := b.subscribers[sub.Topic]
	_, ok := subs[sub.ID]
	if ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(b.subscribers, sub.Topic)
		}
	}
	total := b.countLocked()
	b.mu.Unlock()

	if !ok {
		return
	}

	sub.close()
	subscribersGauge.Dec()

	b.logger.Debug("subscriber removed",
		slog.String("subscription_id", sub.ID),
		slog.Duration("duration", time.Since(sub.ConnectedAt)),
		slog.Int("total_subscribers", total))
}

// Publish delivers ev to every subscriber registered on its topic at the
// time of the call and returns how many received it. Publish never blocks
// on a subscriber.
func (b *Bus) Publish(ev Event) int {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	var delivered, dropped int
	var slow []*Subscription

	b.mu.RLock()
	if b.shutdown {
		b.mu.RUnlock()
		return 0
	}
	for _, sub := range b.subscribers[ev.Topic] {
		ok, overflow := sub.offer(ev, b.policy)
		if ok {
			delivered++
		}
		if overflow {
			dropped++
			if b.policy == CloseSlow {
				slow = append(slow, sub)
			}
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.logger.Warn("closing slow subscriber",
			slog.String("subscription_id", sub.ID),
			slog.String("topic", string(sub.Topic)))
		b.Unsubscribe(sub)
	}

	publishedTotal.WithLabelValues(string(ev.Topic)).Inc()
	deliveredTotal.WithLabelValues(string(ev.Topic)).Add(float64(delivered))
	if dropped > 0 {
		droppedTotal.WithLabelValues(string(b.policy)).Add(float64(dropped))
		if b.policy == DropOldest {
			b.logger.Warn("dropped events for slow subscribers",
				slog.String("topic", string(ev.Topic)),
				slog.Int("dropped", dropped))
		}
	}

	b.logger.Debug("event published",
		slog.String("topic", string(ev.Topic)),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))

	return delivered
}

// SubscriberCount returns the number of registered subscribers on all topics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.countLocked()
}

// Closed reports whether Shutdown has been called.
func (b *Bus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.shutdown
}

func (b *Bus) countLocked() int {
	n := 0
	for _, subs := range b.subscribers {
		n += len(subs)
	}
	return n
}

// Shutdown stops accepting subscribers, closes every open subscription and
// waits for their watchers to exit.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("event bus shutdown initiated")

	b.mu.Lock()
	b.shutdown = true
	var open []*Subscription
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			open = append(open, sub)
		}
	}
	b.subscribers = make(map[Topic]map[string]*Subscription)
	b.mu.Unlock()

	for _, sub := range open {
		sub.close()
		subscribersGauge.Dec()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus shutdown complete", slog.Int("closed_subscribers", len(open)))
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus shutdown timed out")
		return ctx.Err()
	}
}
