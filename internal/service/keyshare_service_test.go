package service

import (
	"errors"
	"testing"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/pkg/keywrap"
)

func TestSecretSplitterBindsToRecipient(t *testing.T) {
	pub, priv, err := keywrap.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}

	splitter := NewSecretSplitter([]byte("master"))

	sealed, err := splitter.Share("note-1", pub)
	if err != nil {
		t.Fatalf("splitting: %v", err)
	}

	key, err := keywrap.Open(sealed, pub, priv)
	if err != nil {
		t.Fatalf("recipient could not open the share: %v", err)
	}
	if len(key) != keywrap.KeySize {
		t.Errorf("expected a %d-byte key, got %d", keywrap.KeySize, len(key))
	}

	// The same note yields the same key for every recipient.
	pub2, priv2, _ := keywrap.GenerateKeyPair()
	sealed2, err := splitter.Share("note-1", pub2)
	if err != nil {
		t.Fatalf("second split: %v", err)
	}
	key2, err := keywrap.Open(sealed2, pub2, priv2)
	if err != nil {
		t.Fatalf("second recipient could not open: %v", err)
	}
	if string(key) != string(key2) {
		t.Error("expected both recipients to receive the same note key")
	}

	// The other recipient's keypair cannot open a share not addressed to it.
	if _, err := keywrap.Open(sealed, pub2, priv2); err == nil {
		t.Error("expected a share to be bound to its recipient")
	}
}

func TestGrantIsOwnerOnly(t *testing.T) {
	f := newNoteFixture(t)
	f.users.add(t, "carol")

	created := f.createNote(t, "alice", "secret")

	if _, err := f.keyShares.Grant("bob", created.ID, "carol"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner grant, got %v", err)
	}
	if _, err := f.keyShares.Grant("", created.ID, "carol"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for anonymous grant, got %v", err)
	}
}

func TestGrantRejectsDuplicate(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "secret")

	if _, err := f.keyShares.Grant("alice", created.ID, "bob"); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if _, err := f.keyShares.Grant("alice", created.ID, "bob"); !errors.Is(err, domain.ErrAlreadyShared) {
		t.Fatalf("expected ErrAlreadyShared on duplicate grant, got %v", err)
	}
}

func TestLookupReturnsNilWhenAbsent(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "secret")

	share, err := f.keyShares.Lookup("bob", created.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if share != nil {
		t.Fatalf("expected nil for an absent share, got %+v", share)
	}
}

func TestLookupOnlyServesTheRecipient(t *testing.T) {
	f := newNoteFixture(t)
	f.users.add(t, "carol")

	created := f.createNote(t, "alice", "secret")
	if _, err := f.notes.Share("alice", created.ID, "bob"); err != nil {
		t.Fatalf("sharing: %v", err)
	}

	// Carol asking for bob's share gets nothing, not bob's material.
	share, err := f.keyShares.Lookup("carol", created.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if share != nil {
		t.Fatal("expected no share for an identity the note was not shared with")
	}
}

func TestRevokeIsUnsupported(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "secret")
	if _, err := f.notes.Share("alice", created.ID, "bob"); err != nil {
		t.Fatalf("sharing: %v", err)
	}

	err := f.keyShares.Revoke("alice", created.ID, "bob")
	if !errors.Is(err, ErrRevocationUnsupported) {
		t.Fatalf("expected ErrRevocationUnsupported, got %v", err)
	}

	// The share is untouched after the failed revocation.
	share, err := f.keyShares.Lookup("bob", created.ID)
	if err != nil {
		t.Fatalf("lookup after revoke: %v", err)
	}
	if share == nil {
		t.Error("expected the share to survive the refused revocation")
	}
}
