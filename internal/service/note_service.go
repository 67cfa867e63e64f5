package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Buildathonzx/whisperrnote/internal/auth"
	"github.com/Buildathonzx/whisperrnote/internal/backend"
	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/events"
	"github.com/Buildathonzx/whisperrnote/internal/repository"

	"github.com/google/uuid"
)

// NoteService owns the note lifecycle: authorized CRUD, the append-only
// version history, sharing with key distribution, and cascade delete.
// Direct note edits land here (the ledger side) first; the sync engine
// propagates them to the collaboration store afterwards.
type NoteService struct {
	notes     repository.NoteRepository
	versions  repository.NoteVersionRepository
	contexts  repository.SharedContextRepository
	keyShares *KeyShareService
	ledger    backend.LedgerStore
	collab    backend.CollabStore
	bus       *events.Bus
	locks     *keyedMutex
}

func NewNoteService(
	notes repository.NoteRepository,
	versions repository.NoteVersionRepository,
	contexts repository.SharedContextRepository,
	keyShares *KeyShareService,
	ledger backend.LedgerStore,
	collab backend.CollabStore,
	bus *events.Bus,
) *NoteService {
	return &NoteService{
		notes:     notes,
		versions:  versions,
		contexts:  contexts,
		keyShares: keyShares,
		ledger:    ledger,
		collab:    collab,
		bus:       bus,
		locks:     newKeyedMutex(),
	}
}

func (s *NoteService) publish(eventType domain.EventType, source domain.UpdateSource, noteID, identity, with string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(domain.Event{
		Type:      eventType,
		Source:    source,
		NoteID:    noteID,
		Identity:  identity,
		With:      with,
		Timestamp: time.Now(),
	})
}

// Create stores a note edited directly by its owner; the mutation lands on
// the ledger side first.
func (s *NoteService) Create(caller string, req *domain.CreateNoteRequest) (*domain.NoteResponse, error) {
	return s.create(caller, req, domain.SourceLedger)
}

// ApplyCreateAction is the proposal dispatcher's entry point: the note was
// agreed collaboration-side, so the resulting event originates there.
func (s *NoteService) ApplyCreateAction(a *domain.CreateNoteAction) error {
	_, err := s.create(a.Owner, &domain.CreateNoteRequest{
		ID:               a.NoteID,
		EncryptedContent: a.EncryptedContent,
		Metadata:         a.Metadata,
	}, domain.SourceCollab)
	return err
}

func (s *NoteService) create(caller string, req *domain.CreateNoteRequest, source domain.UpdateSource) (*domain.NoteResponse, error) {
	if auth.IsAnonymous(caller) {
		return nil, fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}

	noteID := req.ID
	if noteID == "" {
		noteID = uuid.New().String()
	}
	defer s.locks.lock(noteID)()

	now := time.Now()

	note := &domain.Note{
		ID:               noteID,
		Owner:            caller,
		EncryptedContent: req.EncryptedContent,
		Metadata:         req.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.notes.Create(note); err != nil {
		return nil, err
	}

	if source == domain.SourceLedger {
		s.writeThrough(note)
	}
	s.publish(domain.EventNoteCreated, source, noteID, caller, "")

	return domain.NewNoteResponse(note), nil
}

// Update edits the note under its lock: the history entry snapshots the
// state no other writer can be replacing concurrently, so each update
// appends exactly one entry and loses nothing.
func (s *NoteService) Update(caller, noteID string, req *domain.UpdateNoteRequest) (*domain.NoteResponse, error) {
	defer s.locks.lock(noteID)()

	note, err := s.notes.FindByID(noteID)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(caller, note) {
		return nil, fmt.Errorf("note %s: %w", noteID, domain.ErrUnauthorized)
	}

	// Snapshot the pre-update state first: history records what the note
	// was, never the live copy.
	if err := s.versions.Append(&domain.NoteVersion{
		VersionID:        uuid.New().String(),
		NoteID:           note.ID,
		EncryptedContent: note.EncryptedContent,
		Metadata:         note.Metadata,
		Timestamp:        note.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to append version: %w", err)
	}

	note.EncryptedContent = req.EncryptedContent
	if req.Metadata != nil {
		note.Metadata = *req.Metadata
	}
	if now := time.Now(); now.After(note.UpdatedAt) {
		note.UpdatedAt = now
	}

	if err := s.notes.Update(note); err != nil {
		return nil, err
	}

	s.writeThrough(note)
	s.publish(domain.EventNoteUpdated, domain.SourceLedger, noteID, caller, "")

	return domain.NewNoteResponse(note), nil
}

// Share grants the recipient read access and a sealed key share in one
// logical operation: a failed membership write unwinds the key record so
// the record-iff-recipient invariant holds.
func (s *NoteService) Share(caller, noteID, recipient string) (*domain.SharedKeyRecord, error) {
	return s.share(caller, noteID, recipient, domain.SourceLedger)
}

// ApplyShareAction executes a threshold-approved share on the note owner's
// behalf; the event originates collaboration-side.
func (s *NoteService) ApplyShareAction(a *domain.ShareNoteAction) error {
	note, err := s.notes.FindByID(a.NoteID)
	if err != nil {
		return err
	}
	_, err = s.share(note.Owner, a.NoteID, a.Recipient, domain.SourceCollab)
	return err
}

func (s *NoteService) share(caller, noteID, recipient string, source domain.UpdateSource) (*domain.SharedKeyRecord, error) {
	defer s.locks.lock(noteID)()

	note, err := s.notes.FindByID(noteID)
	if err != nil {
		return nil, err
	}
	if !auth.CanShare(caller, note) {
		return nil, fmt.Errorf("note %s: %w", noteID, domain.ErrUnauthorized)
	}
	if note.IsSharedWith(recipient) {
		return nil, fmt.Errorf("note %s with %s: %w", noteID, recipient, domain.ErrAlreadyShared)
	}

	record, err := s.keyShares.Grant(caller, noteID, recipient)
	if err != nil {
		return nil, err
	}

	if err := s.notes.Share(noteID, recipient); err != nil {
		s.keyShares.shares.Delete(noteID, recipient)
		return nil, err
	}

	updated, err := s.notes.FindByID(noteID)
	if err != nil {
		return nil, err
	}
	s.contexts.Upsert(&domain.SharedContext{
		ContextID: fmt.Sprintf("ctx:%s", noteID),
		Owner:     note.Owner,
		NoteRefs:  []string{noteID},
		Members:   updated.SharedWith,
	})

	s.publish(domain.EventNoteShared, source, noteID, caller, recipient)

	return record, nil
}

func (s *NoteService) Delete(caller, noteID string) error {
	defer s.locks.lock(noteID)()

	note, err := s.notes.FindByID(noteID)
	if err != nil {
		return err
	}
	if !auth.CanWrite(caller, note) {
		return fmt.Errorf("note %s: %w", noteID, domain.ErrUnauthorized)
	}

	if err := s.notes.Delete(noteID); err != nil {
		return err
	}
	s.versions.DeleteByNote(noteID)
	s.keyShares.shares.DeleteByNote(noteID)
	s.contexts.DeleteByNote(noteID)

	s.publish(domain.EventNoteDeleted, domain.SourceLedger, noteID, caller, "")
	return nil
}

func (s *NoteService) Get(caller, noteID string) (*domain.NoteResponse, error) {
	note, err := s.notes.FindByID(noteID)
	if err != nil {
		return nil, err
	}
	if !auth.CanRead(caller, note) {
		return nil, fmt.Errorf("note %s: %w", noteID, domain.ErrUnauthorized)
	}

	resp := domain.NewNoteResponse(note)

	// Fold in anyone the shared context knows about that the note itself
	// does not yet list.
	for _, member := range s.contextMembers(noteID) {
		if member != note.Owner && !note.IsSharedWith(member) {
			resp.SharedWith = append(resp.SharedWith, member)
		}
	}

	return resp, nil
}

// contextMembers resolves the note's shared context membership. The
// collaboration store is authoritative when it answers; its local mirror
// serves reads through a remote outage.
func (s *NoteService) contextMembers(noteID string) []string {
	if s.collab != nil {
		members, err := s.collab.GetSharedContext(context.Background(), noteID)
		if err == nil && len(members) > 0 {
			return members
		}
		if err != nil {
			log.Printf("collab context read for note %s failed, serving local state: %v", noteID, err)
		}
	}

	if ctx, err := s.contexts.FindByNote(noteID); err == nil {
		return ctx.Members
	}
	return nil
}

func (s *NoteService) List(caller string) ([]*domain.NoteResponse, error) {
	if auth.IsAnonymous(caller) {
		return nil, fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}

	notes, err := s.notes.ListForIdentity(caller)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		responses = append(responses, domain.NewNoteResponse(n))
	}
	return responses, nil
}

// ListVersions returns the note's history oldest-first. A note that never
// existed, or whose deletion cascaded its history away, yields NotFound.
func (s *NoteService) ListVersions(caller, noteID string) ([]*domain.NoteVersion, error) {
	note, err := s.notes.FindByID(noteID)
	if err != nil {
		return nil, err
	}
	if !auth.CanRead(caller, note) {
		return nil, fmt.Errorf("note %s: %w", noteID, domain.ErrUnauthorized)
	}
	return s.versions.ListByNote(noteID)
}

// writeThrough persists the mutation to the durable ledger store. A remote
// failure here does not fail the local mutation: the sync engine's sweep
// reconciles the ledger copy on a later cycle.
func (s *NoteService) writeThrough(note *domain.Note) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.PutNote(context.Background(), note); err != nil {
		log.Printf("ledger write-through for note %s failed, sweep will retry: %v", note.ID, err)
	}
}
