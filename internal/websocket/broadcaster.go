package websocket

import (
	"context"
	"errors"
	"log"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/events"
	"github.com/Buildathonzx/whisperrnote/internal/repository"
)

// Broadcaster subscribes to the domain event bus and pushes each event to
// the identities it concerns: the actor, the share recipient, and everyone
// the affected note is shared with.
type Broadcaster struct {
	manager *Manager
	notes   repository.NoteRepository
	bus     *events.Bus
}

func NewBroadcaster(manager *Manager, notes repository.NoteRepository, bus *events.Bus) *Broadcaster {
	return &Broadcaster{
		manager: manager,
		notes:   notes,
		bus:     bus,
	}
}

// Run blocks until ctx is cancelled or the bus closes.
func (b *Broadcaster) Run(ctx context.Context) error {
	ch := b.bus.Subscribe(128, nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			b.fanOut(event)
		}
	}
}

func (b *Broadcaster) fanOut(event domain.Event) {
	msg, err := NewEventMessage(event)
	if err != nil {
		log.Printf("websocket: encoding event %s: %v", event.Type, err)
		return
	}

	for identity := range b.audience(event) {
		if err := b.manager.BroadcastToIdentity(identity, msg, ""); err != nil {
			log.Printf("websocket: broadcasting %s to %s: %v", event.Type, identity, err)
		}
	}
}

func (b *Broadcaster) audience(event domain.Event) map[string]bool {
	audience := make(map[string]bool)
	if event.Identity != "" {
		audience[event.Identity] = true
	}
	if event.With != "" {
		audience[event.With] = true
	}

	if event.NoteID != "" {
		note, err := b.notes.FindByID(event.NoteID)
		if err == nil {
			audience[note.Owner] = true
			for _, recipient := range note.SharedWith {
				audience[recipient] = true
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("websocket: resolving audience for note %s: %v", event.NoteID, err)
		}
	}

	return audience
}
