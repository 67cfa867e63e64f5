package repository

import (
	"fmt"
	"sync"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

type KeyShareRepository interface {
	Save(record *domain.SharedKeyRecord) error
	Find(noteID, recipient string) (*domain.SharedKeyRecord, error)
	ListByNote(noteID string) ([]*domain.SharedKeyRecord, error)
	// DeleteByNote removes every recipient's record, used by cascade delete.
	DeleteByNote(noteID string) error
	Delete(noteID, recipient string) error
	All() ([]*domain.SharedKeyRecord, error)
}

type memoryKeyShareRepository struct {
	mu sync.RWMutex
	// records is keyed by note id, then recipient.
	records map[string]map[string]*domain.SharedKeyRecord
}

func NewKeyShareRepository() KeyShareRepository {
	return &memoryKeyShareRepository{
		records: make(map[string]map[string]*domain.SharedKeyRecord),
	}
}

func (r *memoryKeyShareRepository) Save(record *domain.SharedKeyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records[record.NoteID] == nil {
		r.records[record.NoteID] = make(map[string]*domain.SharedKeyRecord)
	}
	if _, exists := r.records[record.NoteID][record.Recipient]; exists {
		return fmt.Errorf("key share %s/%s: %w", record.NoteID, record.Recipient, domain.ErrAlreadyShared)
	}

	c := *record
	c.EncryptedKeyMaterial = append([]byte(nil), record.EncryptedKeyMaterial...)
	r.records[record.NoteID][record.Recipient] = &c
	return nil
}

func (r *memoryKeyShareRepository) Find(noteID, recipient string) (*domain.SharedKeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[noteID][recipient]
	if !exists {
		return nil, fmt.Errorf("key share %s/%s: %w", noteID, recipient, domain.ErrNotFound)
	}
	c := *record
	return &c, nil
}

func (r *memoryKeyShareRepository) ListByNote(noteID string) ([]*domain.SharedKeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.SharedKeyRecord
	for _, record := range r.records[noteID] {
		c := *record
		out = append(out, &c)
	}
	return out, nil
}

func (r *memoryKeyShareRepository) DeleteByNote(noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, noteID)
	return nil
}

func (r *memoryKeyShareRepository) Delete(noteID, recipient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records[noteID], recipient)
	if len(r.records[noteID]) == 0 {
		delete(r.records, noteID)
	}
	return nil
}

func (r *memoryKeyShareRepository) All() ([]*domain.SharedKeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.SharedKeyRecord
	for _, byRecipient := range r.records {
		for _, record := range byRecipient {
			c := *record
			out = append(out, &c)
		}
	}
	return out, nil
}
