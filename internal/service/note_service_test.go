package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/repository"
	"github.com/Buildathonzx/whisperrnote/pkg/keywrap"
)

type fakeUserRepository struct {
	users map[string]*domain.User
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepository) add(t *testing.T, id string) *domain.User {
	t.Helper()
	pub, _, err := keywrap.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	user := &domain.User{
		ID:        id,
		Username:  id,
		Email:     id + "@example.com",
		PublicKey: pub,
	}
	f.users[id] = user
	return user
}

func (f *fakeUserRepository) Create(user *domain.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepository) FindByID(id string) (*domain.User, error) {
	user, exists := f.users[id]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return user, nil
}

func (f *fakeUserRepository) FindByEmail(email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (f *fakeUserRepository) FindByUsername(username string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
}

func (f *fakeUserRepository) EmailExists(email string) (bool, error) {
	_, err := f.FindByEmail(email)
	return err == nil, nil
}

func (f *fakeUserRepository) UsernameExists(username string) (bool, error) {
	_, err := f.FindByUsername(username)
	return err == nil, nil
}

// fakeCollabStore serves shared-context reads from a map and can simulate
// a remote outage.
type fakeCollabStore struct {
	members map[string][]string
	fail    bool
}

func newFakeCollabStore() *fakeCollabStore {
	return &fakeCollabStore{members: make(map[string][]string)}
}

func (f *fakeCollabStore) CreateSharedContext(_ context.Context, recipients []string, _ [][]byte) (string, error) {
	return "ctx-1", nil
}

func (f *fakeCollabStore) GetSharedContext(_ context.Context, noteID string) ([]string, error) {
	if f.fail {
		return nil, fmt.Errorf("collab store unreachable: %w", domain.ErrRemoteFailure)
	}
	return f.members[noteID], nil
}

func (f *fakeCollabStore) Propose(_ context.Context, _ []domain.Action) (string, error) {
	return "prop-1", nil
}

func (f *fakeCollabStore) Approve(_ context.Context, _ string) error {
	return nil
}

type noteFixture struct {
	store     *repository.Store
	users     *fakeUserRepository
	collab    *fakeCollabStore
	keyShares *KeyShareService
	notes     *NoteService
}

func newNoteFixture(t *testing.T) *noteFixture {
	t.Helper()
	store := repository.NewStore(2)
	users := newFakeUserRepository()
	users.add(t, "alice")
	users.add(t, "bob")

	collab := newFakeCollabStore()
	splitter := NewSecretSplitter([]byte("test-master-secret"))
	keyShares := NewKeyShareService(store.Notes, store.KeyShares, users, splitter)
	notes := NewNoteService(store.Notes, store.Versions, store.Contexts, keyShares, nil, collab, nil)

	return &noteFixture{
		store:     store,
		users:     users,
		collab:    collab,
		keyShares: keyShares,
		notes:     notes,
	}
}

func (f *noteFixture) createNote(t *testing.T, owner, content string) *domain.NoteResponse {
	t.Helper()
	note, err := f.notes.Create(owner, &domain.CreateNoteRequest{
		EncryptedContent: []byte(content),
		Metadata:         domain.NoteMetadata{Title: "test note"},
	})
	if err != nil {
		t.Fatalf("creating note: %v", err)
	}
	return note
}

func TestCreateAndGetNote(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")

	got, err := f.notes.Get("alice", created.ID)
	if err != nil {
		t.Fatalf("getting note: %v", err)
	}
	if got.Owner != "alice" {
		t.Errorf("expected owner alice, got %s", got.Owner)
	}
	if string(got.EncryptedContent) != "hello" {
		t.Errorf("expected content %q, got %q", "hello", got.EncryptedContent)
	}
}

func TestCreateRejectsAnonymous(t *testing.T) {
	f := newNoteFixture(t)

	_, err := f.notes.Create("", &domain.CreateNoteRequest{EncryptedContent: []byte("x")})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for anonymous caller, got %v", err)
	}

	if _, err := f.notes.List(""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for anonymous list, got %v", err)
	}
}

func TestUpdatePreservesHistory(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")

	updated, err := f.notes.Update("alice", created.ID, &domain.UpdateNoteRequest{
		EncryptedContent: []byte("hi"),
	})
	if err != nil {
		t.Fatalf("updating note: %v", err)
	}
	if string(updated.EncryptedContent) != "hi" {
		t.Errorf("expected updated content %q, got %q", "hi", updated.EncryptedContent)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) && !updated.UpdatedAt.Equal(created.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}

	versions, err := f.notes.ListVersions("alice", created.ID)
	if err != nil {
		t.Fatalf("listing versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	if string(versions[0].EncryptedContent) != "hello" {
		t.Errorf("expected the pre-update content in history, got %q", versions[0].EncryptedContent)
	}

	// Each update adds exactly one version.
	if _, err := f.notes.Update("alice", created.ID, &domain.UpdateNoteRequest{
		EncryptedContent: []byte("hey"),
	}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	versions, _ = f.notes.ListVersions("alice", created.ID)
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if string(versions[1].EncryptedContent) != "hi" {
		t.Errorf("expected versions oldest-first, got %q last", versions[1].EncryptedContent)
	}
}

func TestUpdateIsOwnerOnly(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")
	if _, err := f.notes.Share("alice", created.ID, "bob"); err != nil {
		t.Fatalf("sharing: %v", err)
	}

	// Recipients read, they do not write.
	_, err := f.notes.Update("bob", created.ID, &domain.UpdateNoteRequest{
		EncryptedContent: []byte("overwritten"),
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for recipient update, got %v", err)
	}
}

func TestShareGrantsReadAccessAndKeyShare(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")

	record, err := f.notes.Share("alice", created.ID, "bob")
	if err != nil {
		t.Fatalf("sharing: %v", err)
	}
	if record.Recipient != "bob" || len(record.EncryptedKeyMaterial) == 0 {
		t.Fatalf("expected a wrapped key record for bob, got %+v", record)
	}

	got, err := f.notes.Get("bob", created.ID)
	if err != nil {
		t.Fatalf("recipient read after share: %v", err)
	}
	if !contains(got.SharedWith, "bob") {
		t.Errorf("expected bob in shared_with, got %v", got.SharedWith)
	}

	share, err := f.keyShares.Lookup("bob", created.ID)
	if err != nil {
		t.Fatalf("key lookup: %v", err)
	}
	if share == nil {
		t.Fatal("expected a key share for the recipient")
	}

	listed, err := f.notes.List("bob")
	if err != nil {
		t.Fatalf("listing for recipient: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("expected the shared note in bob's list, got %d notes", len(listed))
	}
}

func TestShareIsIdempotentlyRejected(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")
	if _, err := f.notes.Share("alice", created.ID, "bob"); err != nil {
		t.Fatalf("first share: %v", err)
	}

	_, err := f.notes.Share("alice", created.ID, "bob")
	if !errors.Is(err, domain.ErrAlreadyShared) {
		t.Fatalf("expected ErrAlreadyShared, got %v", err)
	}
}

func TestShareIsOwnerOnly(t *testing.T) {
	f := newNoteFixture(t)
	f.users.add(t, "carol")

	created := f.createNote(t, "alice", "hello")
	if _, err := f.notes.Share("alice", created.ID, "bob"); err != nil {
		t.Fatalf("sharing: %v", err)
	}

	_, err := f.notes.Share("bob", created.ID, "carol")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for recipient re-share, got %v", err)
	}
}

func TestShareUnknownRecipientLeavesNoRecord(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")

	_, err := f.notes.Share("alice", created.ID, "mallory")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recipient, got %v", err)
	}

	// A key record must exist iff the recipient is in shared_with.
	got, _ := f.notes.Get("alice", created.ID)
	if contains(got.SharedWith, "mallory") {
		t.Error("unknown recipient leaked into shared_with")
	}
	records, _ := f.store.KeyShares.ListByNote(created.ID)
	if len(records) != 0 {
		t.Errorf("expected no key records, got %d", len(records))
	}
}

func TestGetRejectsStranger(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")

	_, err := f.notes.Get("bob", created.ID)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger read, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")
	if _, err := f.notes.Update("alice", created.ID, &domain.UpdateNoteRequest{
		EncryptedContent: []byte("hi"),
	}); err != nil {
		t.Fatalf("updating: %v", err)
	}
	if _, err := f.notes.Share("alice", created.ID, "bob"); err != nil {
		t.Fatalf("sharing: %v", err)
	}

	if err := f.notes.Delete("bob", created.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for recipient delete, got %v", err)
	}

	if err := f.notes.Delete("alice", created.ID); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	if _, err := f.notes.Get("alice", created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := f.notes.ListVersions("alice", created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for history after delete, got %v", err)
	}
	share, err := f.keyShares.Lookup("bob", created.ID)
	if err != nil {
		t.Fatalf("key lookup after delete: %v", err)
	}
	if share != nil {
		t.Error("expected key shares cascaded away")
	}
	listed, _ := f.notes.List("bob")
	if len(listed) != 0 {
		t.Errorf("expected the note gone from bob's list, got %d", len(listed))
	}
}

func TestConcurrentUpdatesKeepHistoryConsistent(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "v0")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.notes.Update("alice", created.ID, &domain.UpdateNoteRequest{
				EncryptedContent: []byte(fmt.Sprintf("rev-%d", i)),
			}); err != nil {
				t.Errorf("concurrent update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	versions, err := f.notes.ListVersions("alice", created.ID)
	if err != nil {
		t.Fatalf("listing versions: %v", err)
	}
	if len(versions) != writers {
		t.Fatalf("expected %d history entries, got %d", writers, len(versions))
	}

	// Each update snapshots a distinct pre-state; a repeated entry means
	// two writers copied the same one.
	seen := make(map[string]bool)
	for _, v := range versions {
		content := string(v.EncryptedContent)
		if seen[content] {
			t.Errorf("history entry %q recorded twice", content)
		}
		seen[content] = true
	}
	if !seen["v0"] {
		t.Error("expected the original content preserved in history")
	}

	note, err := f.notes.Get("alice", created.ID)
	if err != nil {
		t.Fatalf("getting note: %v", err)
	}
	if seen[string(note.EncryptedContent)] {
		t.Errorf("live content %q must not also sit in history", note.EncryptedContent)
	}
}

func TestGetPrefersCollabContextMembers(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")
	f.collab.members[created.ID] = []string{"alice", "carol"}

	got, err := f.notes.Get("alice", created.ID)
	if err != nil {
		t.Fatalf("getting note: %v", err)
	}
	if !contains(got.SharedWith, "carol") {
		t.Errorf("expected the collab context member folded in, got %v", got.SharedWith)
	}
	if contains(got.SharedWith, "alice") {
		t.Error("the owner must not appear in shared_with")
	}
}

func TestGetFallsBackToLocalContextWhenCollabFails(t *testing.T) {
	f := newNoteFixture(t)

	created := f.createNote(t, "alice", "hello")
	f.store.Contexts.Upsert(&domain.SharedContext{
		ContextID: "ctx:" + created.ID,
		Owner:     "alice",
		NoteRefs:  []string{created.ID},
		Members:   []string{"alice", "dave"},
	})

	f.collab.fail = true
	got, err := f.notes.Get("alice", created.ID)
	if err != nil {
		t.Fatalf("getting note through outage: %v", err)
	}
	if !contains(got.SharedWith, "dave") {
		t.Errorf("expected the local context to serve the read, got %v", got.SharedWith)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
