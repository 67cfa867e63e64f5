package repository

import (
	"fmt"
	"sync"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

type NoteRepository interface {
	Create(note *domain.Note) error
	FindByID(id string) (*domain.Note, error)
	ListByOwner(owner string) ([]*domain.Note, error)
	// ListForIdentity returns every note the identity owns or has been
	// shared, via the reverse permission index.
	ListForIdentity(identity string) ([]*domain.Note, error)
	Update(note *domain.Note) error
	// Share adds the recipient to the note's recipient set and to the
	// reverse index in one critical section: both writes land or neither.
	Share(noteID, recipient string) error
	// Delete removes the note and every reverse index entry pointing at it,
	// for the owner and all former recipients.
	Delete(id string) error
	All() ([]*domain.Note, error)
}

// memoryNoteRepository is the process-wide note state. Each call is one
// critical section: its composite field updates complete fully before the
// next call on the same note observes anything.
type memoryNoteRepository struct {
	mu    sync.RWMutex
	notes map[string]*domain.Note
	// access is the reverse permission index: identity -> note ids the
	// identity may read (owned or shared).
	access map[string]map[string]bool
}

func NewNoteRepository() NoteRepository {
	return &memoryNoteRepository{
		notes:  make(map[string]*domain.Note),
		access: make(map[string]map[string]bool),
	}
}

func cloneNote(n *domain.Note) *domain.Note {
	c := *n
	c.SharedWith = append([]string(nil), n.SharedWith...)
	c.Metadata.Tags = append([]string(nil), n.Metadata.Tags...)
	return &c
}

func (r *memoryNoteRepository) grant(identity, noteID string) {
	if r.access[identity] == nil {
		r.access[identity] = make(map[string]bool)
	}
	r.access[identity][noteID] = true
}

func (r *memoryNoteRepository) revoke(identity, noteID string) {
	delete(r.access[identity], noteID)
	if len(r.access[identity]) == 0 {
		delete(r.access, identity)
	}
}

func (r *memoryNoteRepository) Create(note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[note.ID]; exists {
		return fmt.Errorf("note %s: %w", note.ID, domain.ErrAlreadyExists)
	}

	r.notes[note.ID] = cloneNote(note)
	r.grant(note.Owner, note.ID)
	for _, recipient := range note.SharedWith {
		r.grant(recipient, note.ID)
	}

	return nil
}

func (r *memoryNoteRepository) FindByID(id string) (*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, exists := r.notes[id]
	if !exists {
		return nil, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	return cloneNote(note), nil
}

func (r *memoryNoteRepository) ListByOwner(owner string) ([]*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var notes []*domain.Note
	for _, n := range r.notes {
		if n.Owner == owner {
			notes = append(notes, cloneNote(n))
		}
	}
	return notes, nil
}

func (r *memoryNoteRepository) ListForIdentity(identity string) ([]*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var notes []*domain.Note
	for noteID := range r.access[identity] {
		if n, exists := r.notes[noteID]; exists {
			notes = append(notes, cloneNote(n))
		}
	}
	return notes, nil
}

func (r *memoryNoteRepository) Update(note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[note.ID]; !exists {
		return fmt.Errorf("note %s: %w", note.ID, domain.ErrNotFound)
	}
	r.notes[note.ID] = cloneNote(note)
	return nil
}

func (r *memoryNoteRepository) Share(noteID, recipient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	note, exists := r.notes[noteID]
	if !exists {
		return fmt.Errorf("note %s: %w", noteID, domain.ErrNotFound)
	}
	if note.IsSharedWith(recipient) {
		return fmt.Errorf("note %s with %s: %w", noteID, recipient, domain.ErrAlreadyShared)
	}
	if note.Owner == recipient {
		// owner ∉ shared_with, always.
		return fmt.Errorf("note %s: owner cannot be a recipient: %w", noteID, domain.ErrAlreadyShared)
	}

	note.SharedWith = append(note.SharedWith, recipient)
	r.grant(recipient, noteID)
	return nil
}

func (r *memoryNoteRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	note, exists := r.notes[id]
	if !exists {
		return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}

	r.revoke(note.Owner, id)
	for _, recipient := range note.SharedWith {
		r.revoke(recipient, id)
	}
	delete(r.notes, id)
	return nil
}

func (r *memoryNoteRepository) All() ([]*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]*domain.Note, 0, len(r.notes))
	for _, n := range r.notes {
		notes = append(notes, cloneNote(n))
	}
	return notes, nil
}
