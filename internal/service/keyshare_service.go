package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Buildathonzx/whisperrnote/internal/auth"
	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/repository"
	"github.com/Buildathonzx/whisperrnote/pkg/keywrap"

	"golang.org/x/crypto/hkdf"

	"crypto/sha256"
	"io"
)

// ErrRevocationUnsupported is returned for any attempt to recall a key
// share. Removing a recipient does not retroactively protect material that
// was already distributed; this is a stated limitation of the design, not a
// transient failure.
var ErrRevocationUnsupported = errors.New("key share revocation is not supported: distributed key material cannot be recalled")

// SecretSplitter produces an opaque, recipient-bound share of a note's
// symmetric key. The core never handles plaintext keys beyond this
// capability boundary.
type SecretSplitter interface {
	Share(noteID string, recipientPub []byte) ([]byte, error)
}

// hkdfSplitter derives each note's key from a master secret and seals it to
// the recipient, so neither backing store ever sees the plaintext key.
type hkdfSplitter struct {
	master []byte
}

func NewSecretSplitter(masterSecret []byte) SecretSplitter {
	return &hkdfSplitter{master: masterSecret}
}

func (s *hkdfSplitter) Share(noteID string, recipientPub []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, s.master, nil, []byte("note:"+noteID))
	key := make([]byte, keywrap.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive note key: %w", err)
	}
	return keywrap.Seal(key, recipientPub)
}

type KeyShareService struct {
	notes    repository.NoteRepository
	shares   repository.KeyShareRepository
	users    repository.UserRepository
	splitter SecretSplitter
}

func NewKeyShareService(
	notes repository.NoteRepository,
	shares repository.KeyShareRepository,
	users repository.UserRepository,
	splitter SecretSplitter,
) *KeyShareService {
	return &KeyShareService{
		notes:    notes,
		shares:   shares,
		users:    users,
		splitter: splitter,
	}
}

// Grant derives a recipient-bound share of the note's key and records it.
// Owner-only. The caller is responsible for adding the recipient to the
// note's recipient set in the same logical operation.
func (s *KeyShareService) Grant(owner, noteID, recipient string) (*domain.SharedKeyRecord, error) {
	if auth.IsAnonymous(owner) {
		return nil, fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}

	note, err := s.notes.FindByID(noteID)
	if err != nil {
		return nil, err
	}
	if !auth.CanShare(owner, note) {
		return nil, fmt.Errorf("only the owner may grant key shares: %w", domain.ErrUnauthorized)
	}

	user, err := s.users.FindByID(recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient %s: %w", recipient, domain.ErrNotFound)
	}

	material, err := s.splitter.Share(noteID, user.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to split note key: %w", err)
	}

	record := &domain.SharedKeyRecord{
		NoteID:               noteID,
		Recipient:            recipient,
		EncryptedKeyMaterial: material,
		CreatedAt:            time.Now(),
	}
	if err := s.shares.Save(record); err != nil {
		return nil, err
	}

	return record, nil
}

// Lookup returns the share addressed to the caller, or nil when none exists.
func (s *KeyShareService) Lookup(caller, noteID string) (*domain.KeyShareResponse, error) {
	if auth.IsAnonymous(caller) {
		return nil, fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}

	record, err := s.shares.Find(noteID, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &domain.KeyShareResponse{
		NoteID:               record.NoteID,
		EncryptedKeyMaterial: record.EncryptedKeyMaterial,
	}, nil
}

// Revoke always fails: the design has no way to recall distributed key
// material, and callers must see that rather than a silent no-op.
func (s *KeyShareService) Revoke(owner, noteID, recipient string) error {
	return ErrRevocationUnsupported
}
