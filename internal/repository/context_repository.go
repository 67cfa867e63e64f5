package repository

import (
	"fmt"
	"sync"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

// SharedContextRepository mirrors the collaboration-side context records in
// the core state: one context per shared note, listing its members. Kept so
// note reads and state snapshots can report sharing without a boundary call.
type SharedContextRepository interface {
	Upsert(ctx *domain.SharedContext) error
	FindByNote(noteID string) (*domain.SharedContext, error)
	DeleteByNote(noteID string) error
	All() ([]*domain.SharedContext, error)
}

type memorySharedContextRepository struct {
	mu sync.RWMutex
	// byNote indexes contexts by the single note they reference.
	byNote map[string]*domain.SharedContext
}

func NewSharedContextRepository() SharedContextRepository {
	return &memorySharedContextRepository{
		byNote: make(map[string]*domain.SharedContext),
	}
}

func cloneContext(c *domain.SharedContext) *domain.SharedContext {
	out := *c
	out.NoteRefs = append([]string(nil), c.NoteRefs...)
	out.Members = append([]string(nil), c.Members...)
	return &out
}

func (r *memorySharedContextRepository) Upsert(ctx *domain.SharedContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, noteID := range ctx.NoteRefs {
		r.byNote[noteID] = cloneContext(ctx)
	}
	return nil
}

func (r *memorySharedContextRepository) FindByNote(noteID string) (*domain.SharedContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctx, exists := r.byNote[noteID]
	if !exists {
		return nil, fmt.Errorf("context for note %s: %w", noteID, domain.ErrNotFound)
	}
	return cloneContext(ctx), nil
}

func (r *memorySharedContextRepository) DeleteByNote(noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byNote, noteID)
	return nil
}

func (r *memorySharedContextRepository) All() ([]*domain.SharedContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*domain.SharedContext
	for _, ctx := range r.byNote {
		if seen[ctx.ContextID] {
			continue
		}
		seen[ctx.ContextID] = true
		out = append(out, cloneContext(ctx))
	}
	return out, nil
}
