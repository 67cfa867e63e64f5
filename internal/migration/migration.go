// Package migration moves process state across a version boundary. Export
// captures a consistent snapshot of the store; Import restores one, refusing
// any snapshot layout this build does not understand.
package migration

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/repository"
)

// Export serializes the store's notes, version history, key shares, and
// shared contexts as a versioned JSON snapshot.
func Export(store *repository.Store, w io.Writer) error {
	snapshot, err := Snapshot(store)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Snapshot captures the store state without serializing it.
func Snapshot(store *repository.Store) (*domain.StateSnapshot, error) {
	notes, err := store.Notes.All()
	if err != nil {
		return nil, fmt.Errorf("collecting notes: %w", err)
	}
	versions, err := store.Versions.All()
	if err != nil {
		return nil, fmt.Errorf("collecting note versions: %w", err)
	}
	keyShares, err := store.KeyShares.All()
	if err != nil {
		return nil, fmt.Errorf("collecting key shares: %w", err)
	}
	contexts, err := store.Contexts.All()
	if err != nil {
		return nil, fmt.Errorf("collecting shared contexts: %w", err)
	}

	return &domain.StateSnapshot{
		Version:   domain.SnapshotVersion,
		Notes:     notes,
		Versions:  versions,
		KeyShares: keyShares,
		Contexts:  contexts,
	}, nil
}

// Import reads a snapshot and loads it into the store. The snapshot version
// must match exactly; an unknown version is rejected before any state is
// touched.
func Import(store *repository.Store, r io.Reader) error {
	var snapshot domain.StateSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	return Restore(store, &snapshot)
}

// Restore loads an already decoded snapshot into the store.
func Restore(store *repository.Store, snapshot *domain.StateSnapshot) error {
	if snapshot.Version != domain.SnapshotVersion {
		return fmt.Errorf("snapshot version %d: %w", snapshot.Version, domain.ErrUnsupportedVersion)
	}

	for _, note := range snapshot.Notes {
		if err := store.Notes.Create(note); err != nil {
			return fmt.Errorf("restoring note %s: %w", note.ID, err)
		}
	}
	for _, version := range snapshot.Versions {
		if err := store.Versions.Append(version); err != nil {
			return fmt.Errorf("restoring version %s: %w", version.VersionID, err)
		}
	}
	for _, record := range snapshot.KeyShares {
		if err := store.KeyShares.Save(record); err != nil {
			return fmt.Errorf("restoring key share for note %s: %w", record.NoteID, err)
		}
	}
	for _, ctx := range snapshot.Contexts {
		if err := store.Contexts.Upsert(ctx); err != nil {
			return fmt.Errorf("restoring shared context %s: %w", ctx.ContextID, err)
		}
	}
	return nil
}
