package domain

// UpdateSource identifies which backing store an update originated from.
type UpdateSource string

const (
	SourceLedger UpdateSource = "ledger"
	SourceCollab UpdateSource = "collab"
)

// VersionVector is the per-note pair of logical clocks plus the clock value
// at the last successful sync. Reconciliation triggers only while the ledger
// and collaboration clocks differ; after a sync all three converge.
type VersionVector struct {
	LedgerClock   int64 `json:"ledger_clock"`
	CollabClock   int64 `json:"collab_clock"`
	LastSyncClock int64 `json:"last_sync_clock"`
}

func (v VersionVector) Converged() bool {
	return v.LedgerClock == v.CollabClock && v.CollabClock == v.LastSyncClock
}

type DirectiveKind string

const (
	PushToLedger DirectiveKind = "push_to_ledger"
	PushToCollab DirectiveKind = "push_to_collab"
	// ResolveConflict marks exact simultaneity: both sides updated with the
	// same timestamp since the last sync. Clock comparison alone cannot pick
	// a direction, so the engine's conflict policy decides.
	ResolveConflict DirectiveKind = "resolve_conflict"
)

// SyncDirective is a queued propagation order for one note. At most one
// directive per note id exists at a time; a newer update replaces an older
// undelivered directive rather than queueing behind it.
type SyncDirective struct {
	Kind      DirectiveKind `json:"kind"`
	NoteID    string        `json:"note_id"`
	Timestamp int64         `json:"timestamp"`
}
