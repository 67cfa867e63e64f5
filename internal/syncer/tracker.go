package syncer

import (
	"sync"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

// Tracker maintains one version vector per note and decides which direction
// a change must flow. It retains at most one pending directive per note: a
// later update for the same note replaces an undelivered directive instead
// of queueing behind it.
type Tracker struct {
	mu      sync.Mutex
	vectors map[string]*domain.VersionVector
	pending map[string]domain.SyncDirective
}

func NewTracker() *Tracker {
	return &Tracker{
		vectors: make(map[string]*domain.VersionVector),
		pending: make(map[string]domain.SyncDirective),
	}
}

// RegisterUpdate advances the clock for the originating store and recomputes
// the note's directive. Equal clocks that both moved past the last sync mark
// an explicit conflict; equal clocks at the last sync mean convergence and
// clear any stale directive.
func (t *Tracker) RegisterUpdate(source domain.UpdateSource, noteID string, timestamp int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.vectors[noteID]
	if v == nil {
		v = &domain.VersionVector{}
		t.vectors[noteID] = v
	}

	switch source {
	case domain.SourceLedger:
		if timestamp > v.LedgerClock {
			v.LedgerClock = timestamp
		}
	case domain.SourceCollab:
		if timestamp > v.CollabClock {
			v.CollabClock = timestamp
		}
	}

	switch {
	case v.LedgerClock > v.CollabClock:
		t.pending[noteID] = domain.SyncDirective{
			Kind:      domain.PushToCollab,
			NoteID:    noteID,
			Timestamp: v.LedgerClock,
		}
	case v.CollabClock > v.LedgerClock:
		t.pending[noteID] = domain.SyncDirective{
			Kind:      domain.PushToLedger,
			NoteID:    noteID,
			Timestamp: v.CollabClock,
		}
	case v.LedgerClock != v.LastSyncClock:
		// Both sides moved to the same tick since the last sync: exact
		// simultaneity, which clock comparison cannot order.
		t.pending[noteID] = domain.SyncDirective{
			Kind:      domain.ResolveConflict,
			NoteID:    noteID,
			Timestamp: v.LedgerClock,
		}
	default:
		delete(t.pending, noteID)
	}
}

// MarkSynced converges all three clocks and clears the note's directive.
func (t *Tracker) MarkSynced(noteID string, timestamp int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.vectors[noteID]
	if v == nil {
		v = &domain.VersionVector{}
		t.vectors[noteID] = v
	}
	v.LedgerClock = timestamp
	v.CollabClock = timestamp
	v.LastSyncClock = timestamp

	delete(t.pending, noteID)
}

// Forget drops all tracking state for a deleted note.
func (t *Tracker) Forget(noteID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.vectors, noteID)
	delete(t.pending, noteID)
}

// Pending snapshots the full set of undelivered directives. Directives stay
// pending until MarkSynced clears them, so a failed delivery is retried on
// the next cycle.
func (t *Tracker) Pending() []domain.SyncDirective {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.SyncDirective, 0, len(t.pending))
	for _, d := range t.pending {
		out = append(out, d)
	}
	return out
}

// Vector returns a copy of the note's version vector.
func (t *Tracker) Vector(noteID string) (domain.VersionVector, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, exists := t.vectors[noteID]
	if !exists {
		return domain.VersionVector{}, false
	}
	return *v, true
}

// Vectors returns a copy of every tracked vector, keyed by note id.
func (t *Tracker) Vectors() map[string]domain.VersionVector {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]domain.VersionVector, len(t.vectors))
	for id, v := range t.vectors {
		out[id] = *v
	}
	return out
}
