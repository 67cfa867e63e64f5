package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

func newTestNote(id, owner string) *domain.Note {
	now := time.Now()
	return &domain.Note{
		ID:               id,
		Owner:            owner,
		EncryptedContent: []byte("ciphertext"),
		Metadata:         domain.NoteMetadata{Title: "enc-title", EncryptionVersion: 1},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestNoteRepository_CreateDuplicate(t *testing.T) {
	repo := NewNoteRepository()

	if err := repo.Create(newTestNote("n1", "alice")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	err := repo.Create(newTestNote("n1", "alice"))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestNoteRepository_ShareMaintainsReverseIndex(t *testing.T) {
	repo := NewNoteRepository()
	repo.Create(newTestNote("n1", "alice"))

	if err := repo.Share("n1", "bob"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	notes, _ := repo.ListForIdentity("bob")
	if len(notes) != 1 || notes[0].ID != "n1" {
		t.Fatalf("expected bob to see n1, got %v", notes)
	}

	err := repo.Share("n1", "bob")
	if !errors.Is(err, domain.ErrAlreadyShared) {
		t.Errorf("expected ErrAlreadyShared, got %v", err)
	}

	// owner never appears in shared_with
	err = repo.Share("n1", "alice")
	if err == nil {
		t.Error("expected error sharing note with its owner")
	}
}

func TestNoteRepository_DeleteCascadesReverseIndex(t *testing.T) {
	repo := NewNoteRepository()
	repo.Create(newTestNote("n1", "alice"))
	repo.Share("n1", "bob")

	if err := repo.Delete("n1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, identity := range []string{"alice", "bob"} {
		notes, _ := repo.ListForIdentity(identity)
		if len(notes) != 0 {
			t.Errorf("expected %s to see no notes after delete, got %d", identity, len(notes))
		}
	}

	_, err := repo.FindByID("n1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNoteRepository_ReadsReturnCopies(t *testing.T) {
	repo := NewNoteRepository()
	repo.Create(newTestNote("n1", "alice"))

	got, _ := repo.FindByID("n1")
	got.Metadata.Title = "mutated"
	got.SharedWith = append(got.SharedWith, "mallory")

	fresh, _ := repo.FindByID("n1")
	if fresh.Metadata.Title != "enc-title" {
		t.Error("mutation of a returned note leaked into the repository")
	}
	if len(fresh.SharedWith) != 0 {
		t.Error("appending to a returned recipient set leaked into the repository")
	}
}
