// Package events is the in-process domain event bus. Publishing is
// fire-and-forget: subscribers get at-least-once delivery in publish order
// per source, and a slow subscriber loses events rather than blocking the
// publisher.
package events

import (
	"log"
	"sync"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

type Filter func(domain.Event) bool

// FilterSource keeps only events originating from the given backing store.
func FilterSource(source domain.UpdateSource) Filter {
	return func(e domain.Event) bool { return e.Source == source }
}

type subscription struct {
	ch     chan domain.Event
	filter Filter
}

type Bus struct {
	mu   sync.RWMutex
	subs []*subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a buffered subscription. A nil filter receives every
// event.
func (b *Bus) Subscribe(buffer int, filter Filter) <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		ch:     make(chan domain.Event, buffer),
		filter: filter,
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

func (b *Bus) Publish(e domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			log.Printf("event bus: dropping %s for a slow subscriber", e.Type)
		}
	}
}

// Close tears the bus down; publishing after Close is a programming error.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
