// Package syncer keeps the ledger and collaboration stores converged. It
// consumes domain events from both sides, folds them into per-note version
// vectors, and delivers the resulting directives on a short live cycle plus
// a slow full sweep.
package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Buildathonzx/whisperrnote/internal/backend"
	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/events"
	"github.com/Buildathonzx/whisperrnote/internal/repository"
)

const (
	DefaultLiveInterval  = 5 * time.Second
	DefaultSweepInterval = 300 * time.Second

	queueSize = 256
)

type Engine struct {
	tracker  *Tracker
	notes    repository.NoteRepository
	versions repository.NoteVersionRepository
	shares   repository.KeyShareRepository
	ledger   backend.LedgerStore
	collab   backend.CollabStore
	bus      *events.Bus

	liveInterval  time.Duration
	sweepInterval time.Duration
}

func NewEngine(
	tracker *Tracker,
	notes repository.NoteRepository,
	versions repository.NoteVersionRepository,
	shares repository.KeyShareRepository,
	ledger backend.LedgerStore,
	collab backend.CollabStore,
	bus *events.Bus,
) *Engine {
	return &Engine{
		tracker:       tracker,
		notes:         notes,
		versions:      versions,
		shares:        shares,
		ledger:        ledger,
		collab:        collab,
		bus:           bus,
		liveInterval:  DefaultLiveInterval,
		sweepInterval: DefaultSweepInterval,
	}
}

// SetIntervals overrides the live and sweep cadence. Call before Run.
func (e *Engine) SetIntervals(live, sweep time.Duration) {
	if live > 0 {
		e.liveInterval = live
	}
	if sweep > 0 {
		e.sweepInterval = sweep
	}
}

// Run blocks until ctx is cancelled. Two producers, one per backing store,
// forward events into a single queue; the consumer folds them into the
// tracker and drains pending directives every live tick. In-flight work
// finishes before Run returns, queued work is abandoned.
func (e *Engine) Run(ctx context.Context) error {
	ledgerEvents := e.bus.Subscribe(queueSize, events.FilterSource(domain.SourceLedger))
	collabEvents := e.bus.Subscribe(queueSize, events.FilterSource(domain.SourceCollab))

	queue := make(chan domain.Event, queueSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.produce(ctx, ledgerEvents, queue) })
	g.Go(func() error { return e.produce(ctx, collabEvents, queue) })
	g.Go(func() error { return e.consume(ctx, queue) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *Engine) produce(ctx context.Context, in <-chan domain.Event, out chan<- domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- event:
			}
		}
	}
}

func (e *Engine) consume(ctx context.Context, queue <-chan domain.Event) error {
	live := time.NewTicker(e.liveInterval)
	defer live.Stop()
	sweep := time.NewTicker(e.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-queue:
			e.fold(event)
		case <-live.C:
			e.Drain(ctx)
		case <-sweep.C:
			e.Drain(ctx)
			e.Sweep(ctx)
		}
	}
}

// fold translates a domain event into tracker state.
func (e *Engine) fold(event domain.Event) {
	if event.NoteID == "" {
		return
	}
	if event.Type == domain.EventNoteDeleted {
		e.tracker.Forget(event.NoteID)
		return
	}
	e.tracker.RegisterUpdate(event.Source, event.NoteID, event.Timestamp.UnixNano())
}

// Drain delivers every pending directive once. A directive that fails stays
// pending and is retried on the next cycle; delivery is at-least-once.
func (e *Engine) Drain(ctx context.Context) {
	for _, directive := range e.tracker.Pending() {
		if ctx.Err() != nil {
			return
		}
		if err := e.deliver(ctx, directive); err != nil {
			log.Printf("sync: %s for note %s failed, will retry: %v", directive.Kind, directive.NoteID, err)
			continue
		}
		e.tracker.MarkSynced(directive.NoteID, directive.Timestamp)
	}
}

func (e *Engine) deliver(ctx context.Context, d domain.SyncDirective) error {
	note, err := e.notes.FindByID(d.NoteID)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted since the directive was queued.
		e.tracker.Forget(d.NoteID)
		return nil
	}
	if err != nil {
		return err
	}

	switch d.Kind {
	case domain.PushToCollab:
		return e.pushToCollab(ctx, note)
	case domain.PushToLedger:
		return e.ledger.PutNote(ctx, note)
	case domain.ResolveConflict:
		return e.resolveConflict(ctx, note)
	}
	return nil
}

// pushToCollab mirrors a ledger-side change into the collaboration store.
// Shared notes get a shared context carrying the wrapped keys; the note
// itself travels as a create_note proposal action.
func (e *Engine) pushToCollab(ctx context.Context, note *domain.Note) error {
	if len(note.SharedWith) > 0 {
		records, err := e.shares.ListByNote(note.ID)
		if err != nil {
			return err
		}
		material := make([][]byte, 0, len(records))
		for _, record := range records {
			material = append(material, record.EncryptedKeyMaterial)
		}
		if _, err := e.collab.CreateSharedContext(ctx, note.SharedWith, material); err != nil {
			return err
		}
	}

	action, err := domain.NewCreateNoteAction(note.ID, note.Owner, note.EncryptedContent, note.Metadata)
	if err != nil {
		return err
	}
	_, err = e.collab.Propose(ctx, []domain.Action{action})
	return err
}

// resolveConflict applies last-writer-wins by update time, ledger winning
// exact ties. The losing copy is appended to the note's version history
// before the winner overwrites it, so a conflicted edit is never silently
// discarded.
func (e *Engine) resolveConflict(ctx context.Context, local *domain.Note) error {
	remote, err := e.ledger.GetNote(ctx, local.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return e.ledger.PutNote(ctx, local)
	}
	if err != nil {
		return err
	}

	if remote.UpdatedAt.Before(local.UpdatedAt) {
		// Local copy wins; keep the ledger copy in history.
		e.preserve(remote)
		return e.ledger.PutNote(ctx, local)
	}

	// Ledger wins, including exact ties.
	e.preserve(local)
	remote.SharedWith = local.SharedWith
	if err := e.notes.Update(remote); err != nil {
		return err
	}
	return nil
}

func (e *Engine) preserve(loser *domain.Note) {
	version := &domain.NoteVersion{
		VersionID:        uuid.New().String(),
		NoteID:           loser.ID,
		EncryptedContent: loser.EncryptedContent,
		Metadata:         loser.Metadata,
		Timestamp:        loser.UpdatedAt,
	}
	if err := e.versions.Append(version); err != nil {
		log.Printf("sync: preserving conflicted copy of note %s failed: %v", loser.ID, err)
	}
}

// Sweep reconciles every note against the ledger regardless of tracker
// state. It backstops events lost to a full subscriber buffer or a crash
// between event and delivery.
func (e *Engine) Sweep(ctx context.Context) {
	notes, err := e.notes.All()
	if err != nil {
		log.Printf("sync: sweep aborted: %v", err)
		return
	}

	for _, note := range notes {
		if ctx.Err() != nil {
			return
		}

		remote, err := e.ledger.GetNote(ctx, note.ID)
		if errors.Is(err, domain.ErrNotFound) {
			if err := e.ledger.PutNote(ctx, note); err != nil {
				log.Printf("sync: sweep push of note %s failed: %v", note.ID, err)
			}
			continue
		}
		if err != nil {
			log.Printf("sync: sweep read of note %s failed: %v", note.ID, err)
			continue
		}

		switch {
		case remote.UpdatedAt.Before(note.UpdatedAt):
			if err := e.ledger.PutNote(ctx, note); err != nil {
				log.Printf("sync: sweep push of note %s failed: %v", note.ID, err)
			}
		case note.UpdatedAt.Before(remote.UpdatedAt):
			e.preserve(note)
			remote.SharedWith = note.SharedWith
			if err := e.notes.Update(remote); err != nil {
				log.Printf("sync: sweep adopt of note %s failed: %v", note.ID, err)
			}
		}
	}
}
