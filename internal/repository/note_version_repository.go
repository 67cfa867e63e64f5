package repository

import (
	"sync"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

type NoteVersionRepository interface {
	// Append adds one immutable snapshot to the note's history.
	Append(version *domain.NoteVersion) error
	// ListByNote returns the history oldest-first.
	ListByNote(noteID string) ([]*domain.NoteVersion, error)
	// DeleteByNote drops the whole history, used by cascade delete.
	DeleteByNote(noteID string) error
	All() ([]*domain.NoteVersion, error)
}

type memoryNoteVersionRepository struct {
	mu       sync.RWMutex
	versions map[string][]*domain.NoteVersion
}

func NewNoteVersionRepository() NoteVersionRepository {
	return &memoryNoteVersionRepository{
		versions: make(map[string][]*domain.NoteVersion),
	}
}

func (r *memoryNoteVersionRepository) Append(version *domain.NoteVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := *version
	r.versions[version.NoteID] = append(r.versions[version.NoteID], &v)
	return nil
}

func (r *memoryNoteVersionRepository) ListByNote(noteID string) ([]*domain.NoteVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.versions[noteID]
	out := make([]*domain.NoteVersion, len(history))
	for i, v := range history {
		c := *v
		out[i] = &c
	}
	return out, nil
}

func (r *memoryNoteVersionRepository) DeleteByNote(noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.versions, noteID)
	return nil
}

func (r *memoryNoteVersionRepository) All() ([]*domain.NoteVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.NoteVersion
	for _, history := range r.versions {
		for _, v := range history {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}
