package domain

// SnapshotVersion is the only persisted-state layout this build understands.
// Importers must reject any other version rather than guess a compatible
// layout.
const SnapshotVersion uint32 = 1

// SharedContext is the collaboration-side record of who a note is shared
// with. One context exists per shared note.
type SharedContext struct {
	ContextID string   `json:"context_id"`
	Owner     string   `json:"owner"`
	NoteRefs  []string `json:"note_refs"`
	Members   []string `json:"members"`
}

// StateSnapshot is the export/import shape crossing a version boundary.
type StateSnapshot struct {
	Version   uint32             `json:"version"`
	Notes     []*Note            `json:"notes"`
	Versions  []*NoteVersion     `json:"note_versions"`
	KeyShares []*SharedKeyRecord `json:"shared_keys"`
	Contexts  []*SharedContext   `json:"context_data"`
}
