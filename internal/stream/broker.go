package stream

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"

	"feedsync/internal/observability"
)

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

// Handler receives events for one subscription, one at a time, in publish order.
type Handler func(ChangeEvent)

// Subscription is a live registration. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Subscriber registers handlers for a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic Topic, h Handler) (Subscription, error)
}

// Broker both publishes and fans out change events.
type Broker interface {
	Publisher
	Subscriber
}

// ErrBrokerClosed is returned when subscribing to a closed broker.
var ErrBrokerClosed = errors.New("broker closed")

// NopPublisher drops every event. Repositories use it when change events
// originate in the database instead.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

const subscriberBuffer = 256

// LocalBroker fans events out to in-process subscribers. A slow subscriber
// loses events once its buffer is full; it never blocks publishers.
type LocalBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*localSub]struct{}
	closed bool
}

// NewLocalBroker returns an empty broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[*localSub]struct{})}
}

type localSub struct {
	broker *LocalBroker
	topic  Topic
	ch     chan ChangeEvent
	done   chan struct{}
	once   sync.Once
}

// Publish delivers ev to every matching subscriber.
func (b *LocalBroker) Publish(_ context.Context, ev ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs[ev.Table] {
		if !s.topic.Filter.Matches(ev.Record()) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			observability.ChangeStreamDrops.WithLabelValues(ev.Table).Inc()
			log.Printf("stream: subscriber on %s is full, dropped event %s", s.topic, ev.ID)
		}
	}
	return nil
}

// Subscribe registers h for topic. The subscription also ends when ctx is done.
func (b *LocalBroker) Subscribe(ctx context.Context, topic Topic, h Handler) (Subscription, error) {
	s := &localSub{
		broker: b,
		topic:  topic,
		ch:     make(chan ChangeEvent, subscriberBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	if b.subs[topic.Table] == nil {
		b.subs[topic.Table] = make(map[*localSub]struct{})
	}
	b.subs[topic.Table][s] = struct{}{}
	b.mu.Unlock()

	observability.ChangeStreamSubscribers.WithLabelValues(topic.Table).Inc()

	go s.run(h)
	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()

	return s, nil
}

func (s *localSub) run(h Handler) {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.ch:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in stream handler for %s: %v\n%s", s.topic, r, debug.Stack())
					}
				}()
				h(ev)
			}()
		}
	}
}

// Unsubscribe removes the subscription from its broker.
func (s *localSub) Unsubscribe() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		if set := b.subs[s.topic.Table]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.topic.Table)
			}
		}
		b.mu.Unlock()
		close(s.done)
		observability.ChangeStreamSubscribers.WithLabelValues(s.topic.Table).Dec()
	})
}

// SubscriberCount returns the number of live subscriptions for table.
func (b *LocalBroker) SubscriberCount(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[table])
}

// Close ends every subscription and rejects new ones.
func (b *LocalBroker) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*localSub
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	for _, s := range all {
		s.Unsubscribe()
	}
}
